// Package schema validates configuration files and compile databases
// against the embedded JSON schemas.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	schemafs "github.com/AndreyAkinshin/shimbuild/schema"
)

const (
	configSchemaFile = "config.schema.json"
	compdbSchemaFile = "compdb.schema.json"
)

var (
	configSchema *jsonschema.Schema
	compdbSchema *jsonschema.Schema
	compileOnce  sync.Once
	compileErr   error
)

// compileSchemas compiles all embedded schemas once.
func compileSchemas() error {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()

		for _, name := range []string{configSchemaFile, compdbSchemaFile} {
			data, err := schemafs.FS.ReadFile(name)
			if err != nil {
				compileErr = fmt.Errorf("read %s: %w", name, err)
				return
			}
			doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
			if err != nil {
				compileErr = fmt.Errorf("unmarshal %s: %w", name, err)
				return
			}
			if err := compiler.AddResource(name, doc); err != nil {
				compileErr = fmt.Errorf("add %s resource: %w", name, err)
				return
			}
		}

		var err error
		configSchema, err = compiler.Compile(configSchemaFile)
		if err != nil {
			compileErr = fmt.Errorf("compile config schema: %w", err)
			return
		}

		compdbSchema, err = compiler.Compile(compdbSchemaFile)
		if err != nil {
			compileErr = fmt.Errorf("compile compdb schema: %w", err)
			return
		}
	})

	return compileErr
}

// ValidateConfig validates JSON data against the config schema.
func ValidateConfig(data []byte) error {
	return validate(data, func() *jsonschema.Schema { return configSchema }, "config")
}

// ValidateCompileDatabase validates JSON data against the compile database schema.
func ValidateCompileDatabase(data []byte) error {
	return validate(data, func() *jsonschema.Schema { return compdbSchema }, "compile database")
}

func validate(data []byte, sch func() *jsonschema.Schema, what string) error {
	if err := compileSchemas(); err != nil {
		return err
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := sch().Validate(v); err != nil {
		return fmt.Errorf("%s validation failed: %w", what, err)
	}

	return nil
}
