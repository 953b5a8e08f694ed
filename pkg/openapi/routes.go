package openapi

import (
	"net/http"
	"strings"

	"github.com/JaimeStill/lodestar/pkg/routes"
)

// AddGroups describes every route in groups, mounted under basePath.
// Operations are tagged by their group's first path segment.
func (s *Spec) AddGroups(basePath string, groups ...routes.Group) {
	for _, g := range groups {
		s.addGroup(basePath, "", g)
	}
}

func (s *Spec) addGroup(prefix, tag string, g routes.Group) {
	full := prefix + g.Prefix
	if tag == "" {
		tag = strings.Trim(g.Prefix, "/")
	}

	for _, r := range g.Routes {
		path := full + r.Pattern
		item, ok := s.Paths[path]
		if !ok {
			item = &PathItem{}
			s.Paths[path] = item
		}

		op := newOperation(r.Method, path, tag)
		switch r.Method {
		case http.MethodGet:
			item.Get = op
		case http.MethodPost:
			item.Post = op
		case http.MethodPut:
			item.Put = op
		case http.MethodDelete:
			item.Delete = op
		}
	}

	for _, child := range g.Children {
		s.addGroup(full, tag, child)
	}
}

func newOperation(method, path, tag string) *Operation {
	op := &Operation{
		Summary:    method + " " + path,
		Parameters: pathParams(path),
		Responses: map[int]*Response{
			http.StatusOK:         {Description: "Success"},
			http.StatusBadRequest: ResponseRef("BadRequest"),
			http.StatusNotFound:   ResponseRef("NotFound"),
		},
	}
	if tag != "" {
		op.Tags = []string{tag}
	}
	if method == http.MethodPost || method == http.MethodPut {
		op.RequestBody = &RequestBody{
			Content: map[string]*MediaType{
				"application/json": {Schema: &Schema{Type: "object"}},
			},
		}
		op.Responses[http.StatusConflict] = ResponseRef("Conflict")
	}
	return op
}

func pathParams(path string) []*Parameter {
	var params []*Parameter
	for seg := range strings.SplitSeq(path, "/") {
		if !strings.HasPrefix(seg, "{") || !strings.HasSuffix(seg, "}") {
			continue
		}
		name := strings.TrimSuffix(strings.Trim(seg, "{}"), "...")
		if name == "id" {
			params = append(params, PathParam(name, "Resource identifier"))
			continue
		}
		params = append(params, &Parameter{
			Name:     name,
			In:       "path",
			Required: true,
			Schema:   &Schema{Type: "string"},
		})
	}
	return params
}
