package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"census/internal/citizens/validation"
	dErrors "census/pkg/domain-errors"
)

// ImportRequest is the body of POST /imports. Citizen records stay untyped
// until the validator has checked them.
type ImportRequest struct {
	Citizens []validation.Record `json:"citizens"`
}

func decodeImport(body io.Reader) (*ImportRequest, error) {
	var req ImportRequest
	if err := decodeStrict(body, &req); err != nil {
		return nil, err
	}
	if req.Citizens == nil {
		return nil, dErrors.New(dErrors.CodeMalformed, "citizens is required")
	}
	return &req, nil
}

func decodePatch(body io.Reader) (validation.Record, error) {
	var rec validation.Record
	if err := decodeStrict(body, &rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, dErrors.New(dErrors.CodeMalformed, "patch body must be an object")
	}
	return rec, nil
}

// decodeStrict decodes exactly one JSON value, rejecting unknown fields and
// trailing data.
func decodeStrict(body io.Reader, v any) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeMalformed, "failed to read body")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeMalformed, "invalid JSON body")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return dErrors.New(dErrors.CodeMalformed, "unexpected data after JSON body")
	}
	return nil
}
