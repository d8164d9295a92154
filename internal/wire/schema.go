package wire

import (
	"bytes"
	"embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://schemas.insurelink.dev/v" + SchemaVersion + "/"

// responseSchemas maps every operation to the schema file of its response body.
var responseSchemas = map[Operation]string{
	OpToken:       "token.json",
	OpRefresh:     "token.json",
	OpRevoke:      "revoke.json",
	OpSubmitClaim: "claim.json",
	OpUpdateClaim: "claim.json",
	OpClaimStatus: "claim_status.json",
	OpSynchronize: "sync.json",
}

var (
	compileOnce sync.Once
	compiled    map[Operation]*jsonschema.Schema
	compileErr  error
)

func compileSchemas() (map[Operation]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.AssertFormat()

		byFile := make(map[string]*jsonschema.Schema)
		out := make(map[Operation]*jsonschema.Schema, len(responseSchemas))
		for op, file := range responseSchemas {
			if sch, ok := byFile[file]; ok {
				out[op] = sch
				continue
			}
			raw, err := schemaFS.ReadFile("schemas/" + file)
			if err != nil {
				compileErr = fmt.Errorf("reading schema %s: %w", file, err)
				return
			}
			doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
			if err != nil {
				compileErr = fmt.Errorf("parsing schema %s: %w", file, err)
				return
			}
			if err := c.AddResource(schemaBaseURL+file, doc); err != nil {
				compileErr = fmt.Errorf("adding schema %s: %w", file, err)
				return
			}
			sch, err := c.Compile(schemaBaseURL + file)
			if err != nil {
				compileErr = fmt.Errorf("compiling schema %s: %w", file, err)
				return
			}
			byFile[file] = sch
			out[op] = sch
		}
		compiled = out
	})
	return compiled, compileErr
}

// ValidateResponseBody checks a response body against the schema of its operation.
func ValidateResponseBody(op Operation, body []byte) error {
	schemas, err := compileSchemas()
	if err != nil {
		return err
	}
	sch, ok := schemas[op]
	if !ok {
		return fmt.Errorf("no response schema for operation %q", op)
	}
	if len(body) == 0 {
		return fmt.Errorf("empty response body for operation %q", op)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parsing response body: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("response body of %q violates schema v%s: %w", op, SchemaVersion, err)
	}
	return nil
}
