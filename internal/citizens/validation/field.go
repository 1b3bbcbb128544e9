// Package validation checks citizen records coming off the wire. Validate
// handles one record; BatchValidator runs it over a whole import and checks the
// relative degrees of the batch.
package validation

import (
	"bytes"
	"encoding/json"
	"strconv"
	"unicode"
	"unicode/utf8"

	"census/internal/citizens/models"
	dErrors "census/pkg/domain-errors"
)

// Record is one citizen object as decoded from JSON, before any typing.
type Record map[string]json.RawMessage

// Mode selects create (every field required, id included) or patch (id
// forbidden, only present fields checked).
type Mode int

const (
	ModeCreate Mode = iota
	ModePatch
)

const (
	FieldCitizenID = "citizen_id"
	FieldTown      = "town"
	FieldStreet    = "street"
	FieldBuilding  = "building"
	FieldApartment = "apartment"
	FieldName      = "name"
	FieldBirthDate = "birth_date"
	FieldGender    = "gender"
	FieldRelatives = "relatives"
)

const maxStringLength = 256

// Result is a validated record. Citizen, Declared and Referenced are only
// filled in create mode; Patch is filled in both.
type Result struct {
	Citizen models.Citizen
	Patch   models.CitizenPatch

	// Declared is {citizen_id: len(relatives)} when the citizen has relatives.
	Declared map[int64]int
	// Referenced is {relative_id: 1} for every distinct relative.
	Referenced map[int64]int
}

type draft struct {
	id    *int64
	patch models.CitizenPatch
}

type fieldRule struct {
	name  string
	apply func(raw json.RawMessage, d *draft, today models.Date) error
}

// rules run in declaration order so the first reported error is stable.
var rules = []fieldRule{
	{FieldCitizenID, applyCitizenID},
	{FieldTown, addressRule(FieldTown, func(d *draft, v string) { d.patch.Town = &v })},
	{FieldStreet, addressRule(FieldStreet, func(d *draft, v string) { d.patch.Street = &v })},
	{FieldBuilding, addressRule(FieldBuilding, func(d *draft, v string) { d.patch.Building = &v })},
	{FieldApartment, applyApartment},
	{FieldName, applyName},
	{FieldBirthDate, applyBirthDate},
	{FieldGender, applyGender},
	{FieldRelatives, applyRelatives},
}

var knownFields = func() map[string]struct{} {
	m := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		m[r.name] = struct{}{}
	}
	return m
}()

// Validate checks one record against the citizen rules. today bounds the
// birth date.
func Validate(rec Record, mode Mode, today models.Date) (*Result, error) {
	if len(rec) == 0 {
		return nil, dErrors.New(dErrors.CodeMalformed, "citizen record is empty")
	}
	for name := range rec {
		if _, ok := knownFields[name]; !ok {
			return nil, dErrors.Field(name, "unknown field")
		}
	}
	if _, ok := rec[FieldCitizenID]; ok && mode == ModePatch {
		return nil, dErrors.Field(FieldCitizenID, "cannot be changed")
	}

	var d draft
	for _, rule := range rules {
		raw, ok := rec[rule.name]
		if !ok {
			if mode == ModeCreate {
				return nil, dErrors.Field(rule.name, "is required")
			}
			continue
		}
		if isNull(raw) {
			return nil, dErrors.Field(rule.name, "must not be null")
		}
		if err := rule.apply(raw, &d, today); err != nil {
			return nil, err
		}
	}

	res := &Result{Patch: d.patch}
	if mode == ModePatch {
		return res, nil
	}

	citizen := d.patch.ApplyTo(models.Citizen{ID: *d.id})
	if citizen.HasRelative(citizen.ID) {
		return nil, dErrors.Newf(dErrors.CodeStructural, "citizen %d lists itself as a relative", citizen.ID)
	}
	res.Citizen = citizen
	res.Declared, res.Referenced = degreeCounters(citizen)
	return res, nil
}

func degreeCounters(c models.Citizen) (declared, referenced map[int64]int) {
	declared = make(map[int64]int, 1)
	referenced = make(map[int64]int, len(c.Relatives))
	if len(c.Relatives) > 0 {
		declared[c.ID] = len(c.Relatives)
	}
	for _, rel := range c.Relatives {
		referenced[rel] = 1
	}
	return declared, referenced
}

func applyCitizenID(raw json.RawMessage, d *draft, _ models.Date) error {
	id, err := parseNonNegative(raw)
	if err != nil {
		return dErrors.Field(FieldCitizenID, err.Error())
	}
	d.id = &id
	return nil
}

func applyApartment(raw json.RawMessage, d *draft, _ models.Date) error {
	apartment, err := parseNonNegative(raw)
	if err != nil {
		return dErrors.Field(FieldApartment, err.Error())
	}
	d.patch.Apartment = &apartment
	return nil
}

func addressRule(field string, set func(*draft, string)) func(json.RawMessage, *draft, models.Date) error {
	return func(raw json.RawMessage, d *draft, _ models.Date) error {
		s, err := parseString(raw)
		if err != nil {
			return dErrors.Field(field, err.Error())
		}
		if err := checkLength(s); err != nil {
			return dErrors.Field(field, err.Error())
		}
		if !hasLetterOrDigit(s) {
			return dErrors.Field(field, "must contain at least one letter or digit")
		}
		set(d, s)
		return nil
	}
}

func applyName(raw json.RawMessage, d *draft, _ models.Date) error {
	s, err := parseString(raw)
	if err != nil {
		return dErrors.Field(FieldName, err.Error())
	}
	if err := checkLength(s); err != nil {
		return dErrors.Field(FieldName, err.Error())
	}
	d.patch.Name = &s
	return nil
}

func applyBirthDate(raw json.RawMessage, d *draft, today models.Date) error {
	s, err := parseString(raw)
	if err != nil {
		return dErrors.Field(FieldBirthDate, err.Error())
	}
	date, err := models.ParseDate(s)
	if err != nil {
		return dErrors.Field(FieldBirthDate, "must be a valid dd.mm.yyyy date")
	}
	if date.After(today) {
		return dErrors.Field(FieldBirthDate, "must not be in the future")
	}
	d.patch.BirthDate = &date
	return nil
}

func applyGender(raw json.RawMessage, d *draft, _ models.Date) error {
	s, err := parseString(raw)
	if err != nil {
		return dErrors.Field(FieldGender, err.Error())
	}
	g := models.Gender(s)
	if g != models.GenderMale && g != models.GenderFemale {
		return dErrors.Field(FieldGender, "must be male or female")
	}
	d.patch.Gender = &g
	return nil
}

func applyRelatives(raw json.RawMessage, d *draft, _ models.Date) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return dErrors.Field(FieldRelatives, "must be a list")
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return dErrors.Field(FieldRelatives, "must be a list")
	}
	relatives := make([]int64, 0, len(items))
	for _, item := range items {
		id, err := parseNonNegative(item)
		if err != nil {
			return dErrors.Field(FieldRelatives, "items "+err.Error())
		}
		relatives = append(relatives, id)
	}
	d.patch.Relatives = &relatives
	return nil
}

type ruleError string

func (e ruleError) Error() string { return string(e) }

const (
	errNotInteger ruleError = "must be an integer"
	errNegative   ruleError = "must not be negative"
	errNotString  ruleError = "must be a string"
	errBadLength  ruleError = "must be between 1 and 256 characters"
)

// parseNonNegative accepts only a JSON integer literal. Booleans, floats,
// strings and exponents are rejected even when they would convert cleanly.
func parseNonNegative(raw json.RawMessage) (int64, error) {
	s := string(bytes.TrimSpace(raw))
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errNotInteger
	}
	if n < 0 {
		return 0, errNegative
	}
	return n, nil
}

func parseString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", errNotString
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", errNotString
	}
	return s, nil
}

func checkLength(s string) error {
	n := utf8.RuneCountInString(s)
	if n < 1 || n > maxStringLength {
		return errBadLength
	}
	return nil
}

func hasLetterOrDigit(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
