// Package main checks that an API revision keeps every path, operation and
// response code of a base OpenAPI document.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"sprout/docs"

	"gopkg.in/yaml.v3"
)

var supportedMethods = map[string]struct{}{
	"get": {}, "put": {}, "post": {}, "delete": {}, "patch": {}, "head": {}, "options": {},
}

// apiSurface maps path -> method -> response codes.
type apiSurface map[string]map[string]map[string]struct{}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("openapi-compat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	basePath := fs.String("base", "", "base OpenAPI document (YAML or JSON)")
	revisionPath := fs.String("revision", "", "revision OpenAPI document; defaults to the embedded swagger doc")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if strings.TrimSpace(*basePath) == "" {
		_, _ = fmt.Fprintln(stderr, "usage: openapi-compat -base <path> [-revision <path>]")
		return 2
	}

	base, err := loadFile(*basePath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "failed to load base document: %v\n", err)
		return 1
	}

	var revision apiSurface
	if *revisionPath == "" {
		revision, err = parseSurface([]byte(docs.SwaggerInfo.ReadDoc()))
	} else {
		revision, err = loadFile(*revisionPath)
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "failed to load revision document: %v\n", err)
		return 1
	}

	if issues := compare(base, revision); len(issues) > 0 {
		_, _ = fmt.Fprintln(stderr, "backward compatibility check failed:")
		for _, issue := range issues {
			_, _ = fmt.Fprintf(stderr, "- %s\n", issue)
		}
		return 1
	}

	_, _ = fmt.Fprintln(stdout, "openapi compatibility check passed")
	return 0
}

func loadFile(path string) (apiSurface, error) {
	// #nosec G304: path comes from CLI flags in a dev tool
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseSurface(raw)
}

// parseSurface reads the paths section of a swagger or OpenAPI document.
// JSON input is accepted because it is valid YAML.
func parseSurface(raw []byte) (apiSurface, error) {
	var doc struct {
		Paths map[string]map[string]yaml.Node `yaml:"paths"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.Paths == nil {
		return nil, errors.New("missing top-level paths field")
	}

	surface := make(apiSurface, len(doc.Paths))
	for path, entries := range doc.Paths {
		ops := make(map[string]map[string]struct{})
		for method, node := range entries {
			method = strings.ToLower(strings.TrimSpace(method))
			if _, ok := supportedMethods[method]; !ok {
				continue
			}
			var op struct {
				Responses map[string]yaml.Node `yaml:"responses"`
			}
			if err := node.Decode(&op); err != nil {
				return nil, fmt.Errorf("%s %s: %w", strings.ToUpper(method), path, err)
			}
			codes := make(map[string]struct{}, len(op.Responses))
			for code := range op.Responses {
				if code = strings.ToLower(strings.TrimSpace(code)); code != "" {
					codes[code] = struct{}{}
				}
			}
			ops[method] = codes
		}
		if len(ops) > 0 {
			surface[path] = ops
		}
	}
	return surface, nil
}

func compare(base, revision apiSurface) []string {
	var issues []string

	for path, baseOps := range base {
		revOps, ok := revision[path]
		if !ok {
			issues = append(issues, fmt.Sprintf("removed path: %s", path))
			continue
		}

		for method, baseCodes := range baseOps {
			revCodes, ok := revOps[method]
			if !ok {
				issues = append(issues, fmt.Sprintf("removed operation: %s %s", strings.ToUpper(method), path))
				continue
			}
			for code := range baseCodes {
				if _, ok := revCodes[code]; !ok {
					issues = append(issues, fmt.Sprintf("removed response code: %s %s -> %s", strings.ToUpper(method), path, strings.ToUpper(code)))
				}
			}
		}
	}

	sort.Strings(issues)
	return issues
}
