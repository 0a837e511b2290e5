// Command docgen writes docs/api.adoc from the @Title/@Route/@Description
// /@Response annotations on the API handlers.
package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

type Endpoint struct {
	Title       string
	Route       string
	Description string
	Response    string
}

// Method returns the HTTP method part of the route.
func (e Endpoint) Method() string {
	return strings.Fields(e.Route)[0]
}

// Path returns the route without method and query.
func (e Endpoint) Path() string {
	p := strings.TrimSpace(strings.TrimPrefix(e.Route, e.Method()))
	if i := strings.Index(p, "?"); i >= 0 {
		p = p[:i]
	}
	return p
}

var (
	reTitle = regexp.MustCompile(`// @Title: (.*)`)
	reRoute = regexp.MustCompile(`// @Route: (.*)`)
	reDesc  = regexp.MustCompile(`// @Description: (.*)`)
	reResp  = regexp.MustCompile(`// @Response: (.*)`)
)

func main() {
	apiDir, out := "internal/api", "docs/api.adoc"
	if len(os.Args) > 1 {
		apiDir = os.Args[1]
	}
	if len(os.Args) > 2 {
		out = os.Args[2]
	}

	files, err := os.ReadDir(apiDir)
	if err != nil {
		log.Fatalf("read %s: %v", apiDir, err)
	}

	var endpoints []Endpoint
	for _, file := range files {
		name := file.Name()
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := os.Open(filepath.Join(apiDir, name))
		if err != nil {
			continue
		}
		eps, err := parse(f)
		f.Close()
		if err != nil {
			log.Fatalf("parse %s: %v", name, err)
		}
		endpoints = append(endpoints, eps...)
	}
	sort.SliceStable(endpoints, func(i, j int) bool { return endpoints[i].Path() < endpoints[j].Path() })

	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(out)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err := render(f, endpoints); err != nil {
		log.Fatal(err)
	}
	log.Printf("INFO: Wrote %d endpoints to %s", len(endpoints), out)
}

// parse collects annotated endpoints. A block ends at its @Response line.
func parse(r io.Reader) ([]Endpoint, error) {
	var endpoints []Endpoint
	var current Endpoint

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if match := reTitle.FindStringSubmatch(line); len(match) > 1 {
			current.Title = strings.TrimSpace(match[1])
		}
		if match := reRoute.FindStringSubmatch(line); len(match) > 1 {
			current.Route = strings.TrimSpace(match[1])
		}
		if match := reDesc.FindStringSubmatch(line); len(match) > 1 {
			current.Description = strings.TrimSpace(match[1])
		}
		if match := reResp.FindStringSubmatch(line); len(match) > 1 {
			current.Response = strings.TrimSpace(match[1])
			if current.Title != "" && current.Route != "" {
				endpoints = append(endpoints, current)
			}
			current = Endpoint{}
		}
	}
	return endpoints, scanner.Err()
}

func render(w io.Writer, endpoints []Endpoint) error {
	var b strings.Builder
	b.WriteString("= lkn HTTP API\n:toc: left\n\n")
	b.WriteString("Generated by `go run ./cmd/docgen` from the handler annotations. Do not edit.\n\n")

	b.WriteString("[cols=\"1,3,4\",options=\"header\"]\n|===\n|Method |Path |Summary\n")
	for _, ep := range endpoints {
		fmt.Fprintf(&b, "|%s |`%s` |%s\n", ep.Method(), ep.Path(), ep.Title)
	}
	b.WriteString("|===\n")

	for _, ep := range endpoints {
		fmt.Fprintf(&b, "\n== %s\n\n", ep.Title)
		fmt.Fprintf(&b, "`%s`\n\n", ep.Route)
		fmt.Fprintf(&b, "%s.\n\n", strings.TrimSuffix(ep.Description, "."))
		fmt.Fprintf(&b, "Response::\n+\n----\n%s\n----\n", ep.Response)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
