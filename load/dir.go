// Package load reads a schema from a directory of YAML files.
//
// The directory layout is:
//
//	types/<Name>.yaml                one type per file
//	relationship-types/<Name>.yaml   one relationship type per file, or
//	relationship-types.yaml          a list of relationship types
//	enums.yaml                       name -> {description, options}
//	string-patterns.yaml             name -> pattern or {pattern, flags}
//	primitive-types.yaml             name -> {graphql, component}
//	type-hierarchy.yaml              category -> {label, description, types}
//	version                          optional version string
//
// Only types/ is required. When there is no version file the version is
// derived from a hash of the files read.
package load

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/syssam/strata/schema"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// File and directory names inside a schema directory.
const (
	TypesDir             = "types"
	RelationshipTypesDir = "relationship-types"
	RelationshipTypes    = "relationship-types.yaml"
	Enums                = "enums.yaml"
	StringPatterns       = "string-patterns.yaml"
	PrimitiveTypes       = "primitive-types.yaml"
	TypeHierarchy        = "type-hierarchy.yaml"
	VersionFile          = "version"
)

// maxParallel bounds concurrent file reads.
const maxParallel = 8

// Dir loads the schema directory at dir.
func Dir(ctx context.Context, dir string) (*schema.Payload, error) {
	snap := &schema.Snapshot{}
	hash := sha256.New()

	typeFiles, err := yamlFiles(filepath.Join(dir, TypesDir))
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	if len(typeFiles) == 0 {
		return nil, fmt.Errorf("load: no type definitions in %s", filepath.Join(dir, TypesDir))
	}
	types, raw, err := decodeAll[schema.TypeDefinition](ctx, typeFiles)
	if err != nil {
		return nil, err
	}
	for i, t := range types {
		if t.Name == "" {
			t.Name = baseName(typeFiles[i])
		}
	}
	snap.Types = types
	writeHash(hash, typeFiles, raw)

	relFiles, err := yamlFiles(filepath.Join(dir, RelationshipTypesDir))
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	if len(relFiles) > 0 {
		rels, raw, err := decodeAll[schema.RelationshipType](ctx, relFiles)
		if err != nil {
			return nil, err
		}
		for i, rt := range rels {
			if rt.Name == "" {
				rt.Name = baseName(relFiles[i])
			}
		}
		snap.RelationshipTypes = rels
		writeHash(hash, relFiles, raw)
	} else if ok, err := decodeOptional(hash, filepath.Join(dir, RelationshipTypes), &snap.RelationshipTypes); err != nil {
		return nil, err
	} else if ok {
		for i, rt := range snap.RelationshipTypes {
			if rt == nil || rt.Name == "" {
				return nil, fmt.Errorf("load: %s: relationship type %d has no name", RelationshipTypes, i)
			}
		}
	}

	optional := []struct {
		name string
		dst  any
	}{
		{Enums, &snap.Enums},
		{StringPatterns, &snap.StringPatterns},
		{PrimitiveTypes, &snap.PrimitiveTypes},
		{TypeHierarchy, &snap.TypeHierarchy},
	}
	for _, f := range optional {
		if _, err := decodeOptional(hash, filepath.Join(dir, f.name), f.dst); err != nil {
			return nil, err
		}
	}

	version, err := os.ReadFile(filepath.Join(dir, VersionFile))
	switch {
	case err == nil && len(strings.TrimSpace(string(version))) > 0:
		snap.Version = strings.TrimSpace(string(version))
	case err == nil, errors.Is(err, fs.ErrNotExist):
		snap.Version = hex.EncodeToString(hash.Sum(nil))[:16]
	default:
		return nil, fmt.Errorf("load: read version: %w", err)
	}
	return &schema.Payload{Version: snap.Version, Schema: snap}, nil
}

// yamlFiles lists *.yaml and *.yml files in dir, sorted. A missing
// directory yields no files.
func yamlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !isYAML(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	slices.Sort(files)
	return files, nil
}

func isYAML(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// decodeAll reads and decodes files concurrently, keeping file order.
func decodeAll[T any](ctx context.Context, files []string) ([]*T, [][]byte, error) {
	out := make([]*T, len(files))
	raw := make([][]byte, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("load: %w", err)
			}
			v := new(T)
			if err := yaml.Unmarshal(b, v); err != nil {
				return fmt.Errorf("load: %s: %w", path, err)
			}
			out[i], raw[i] = v, b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return out, raw, nil
}

// decodeOptional decodes path into dst if the file exists.
func decodeOptional(hash io.Writer, path string, dst any) (bool, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load: %w", err)
	}
	if err := yaml.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("load: %s: %w", path, err)
	}
	writeHash(hash, []string{path}, [][]byte{b})
	return true, nil
}

func writeHash(hash io.Writer, files []string, raw [][]byte) {
	for i, f := range files {
		hash.Write([]byte(filepath.Base(f)))
		hash.Write([]byte{0})
		hash.Write(raw[i])
		hash.Write([]byte{0})
	}
}
