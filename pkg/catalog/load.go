package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shadr/godot-sidekick-lsp/pkg/model"
)

//go:embed assets/type_info.json
var defaultAsset []byte

// ErrMalformed reports catalog data that cannot be decoded into classes.
var ErrMalformed = errors.New("malformed catalog")

// classJSON mirrors one entry of the type_info.json asset.
type classJSON struct {
	Name         string         `json:"name"`
	Parent       string         `json:"parent"`
	Methods      []methodJSON   `json:"methods"`
	Properties   []propertyJSON `json:"properties"`
	Constructors []methodJSON   `json:"constructors"`
	Constants    []constantJSON `json:"constants"`
	Operators    []methodJSON   `json:"operators,omitempty"`
}

type methodJSON struct {
	Name       string         `json:"name"`
	ReturnType string         `json:"return_type"`
	Parameters []propertyJSON `json:"parameters"`
}

type propertyJSON struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type constantJSON struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Default decodes the catalog bundled with the binary.
func Default() (*Catalog, error) {
	c, err := Parse(defaultAsset)
	if err != nil {
		return nil, fmt.Errorf("bundled catalog: %w", err)
	}
	return c, nil
}

// Load reads a catalog from disk. Files ending in .msgpack are read in the
// compiled form, anything else as JSON.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".msgpack") {
		c, err := ReadMsgpack(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("load catalog %s: %w", path, err)
		}
		return c, nil
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes the JSON asset format: a map of class name to class entry.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string]classJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: no classes", ErrMalformed)
	}

	classes := make(map[string]*ClassInfo, len(raw))
	for key, entry := range raw {
		if strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("%w: class with empty name", ErrMalformed)
		}
		info, err := buildClass(key, entry)
		if err != nil {
			return nil, err
		}
		classes[key] = info
	}
	return newCatalog(classes), nil
}

func buildClass(name string, entry classJSON) (*ClassInfo, error) {
	info := &ClassInfo{
		Name:       name,
		Parent:     entry.Parent,
		Methods:    make(map[string]Method, len(entry.Methods)),
		Properties: make(map[string]model.SymbolType, len(entry.Properties)),
		Constants:  make(map[string]string, len(entry.Constants)),
	}
	for _, m := range entry.Methods {
		if m.Name == "" {
			return nil, fmt.Errorf("%w: %s has a method without a name", ErrMalformed, name)
		}
		info.Methods[m.Name] = buildMethod(m)
	}
	for _, p := range entry.Properties {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: %s has a property without a name", ErrMalformed, name)
		}
		info.Properties[p.Name] = model.ParseSymbolType(p.Type)
	}
	if len(entry.Constructors) > 0 {
		ctor := buildMethod(entry.Constructors[0])
		info.Constructor = &ctor
	}
	for _, c := range entry.Constants {
		info.Constants[c.Name] = c.Value
	}
	if len(entry.Operators) > 0 {
		info.Operators = make(map[string]model.SymbolType, len(entry.Operators))
		for _, op := range entry.Operators {
			right := ""
			if len(op.Parameters) > 0 {
				right = op.Parameters[0].Type
			}
			info.Operators[operatorKey(op.Name, right)] = model.ParseSymbolType(op.ReturnType)
		}
	}
	return info, nil
}

func buildMethod(m methodJSON) Method {
	method := Method{
		Name:       m.Name,
		ReturnType: model.ParseSymbolType(m.ReturnType),
	}
	if len(m.Parameters) > 0 {
		method.Parameters = make([]Parameter, 0, len(m.Parameters))
		for _, p := range m.Parameters {
			method.Parameters = append(method.Parameters, Parameter{Name: p.Name, Type: model.ParseSymbolType(p.Type)})
		}
	}
	return method
}
