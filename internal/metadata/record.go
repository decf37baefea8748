// Package metadata defines the per-algorithm records kept in the metadata
// store and their JSON form.
//
// Records are decoded into typed fields while the original object is kept
// alongside them: member order, unknown members and legacy key spellings
// (minValue, maxValue, defaultValue) survive a load and save untouched.
package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Scope says where, or how often, a parameter applies.
type Scope string

const (
	ScopeUnspecified Scope = ""
	ScopeGlobal      Scope = "global"
	ScopeChannel     Scope = "channel"
	ScopeStep        Scope = "step"
	ScopeExpression  Scope = "expression"
	ScopeRandomise   Scope = "randomise"
	ScopeRouting     Scope = "routing"
)

// Record member names.
const (
	keyGUID           = "guid"
	keyName           = "name"
	keyCategories     = "categories"
	keyDescription    = "description"
	keySpecifications = "specifications"
	keyParameters     = "parameters"
	keyInputPorts     = "input_ports"
	keyOutputPorts    = "output_ports"
)

var listKeys = []string{keyCategories, keySpecifications, keyParameters, keyInputPorts, keyOutputPorts}

// AlgorithmRecord is the stored metadata for one algorithm.
type AlgorithmRecord struct {
	GUID           string
	Name           string
	Categories     []string
	Description    string
	Specifications []Specification
	Parameters     []Parameter
	InputPorts     []Port
	OutputPorts    []Port

	obj         object
	broken      map[string]bool // list members present but not arrays
	ensureLists bool
}

// NewRecord returns a skeleton record with every list empty.
func NewRecord(guid, name string) *AlgorithmRecord {
	if name == "" {
		name = guid
	}
	r := &AlgorithmRecord{
		GUID:           guid,
		Name:           name,
		Categories:     []string{},
		Specifications: []Specification{},
		Parameters:     []Parameter{},
		InputPorts:     []Port{},
		OutputPorts:    []Port{},
		ensureLists:    true,
	}
	// Seed member order; MarshalJSON fills in the values.
	for _, key := range []string{keyGUID, keyName, keyCategories} {
		_ = r.obj.put(key, nil)
	}
	_ = r.obj.put(keyDescription, "")
	for _, key := range []string{keySpecifications, keyParameters, keyInputPorts, keyOutputPorts} {
		_ = r.obj.put(key, []any{})
	}
	return r
}

// EnsureLists makes every list member present, replacing members that are
// missing or are not arrays with empty lists. It returns the member names it
// had to repair.
func (r *AlgorithmRecord) EnsureLists() []string {
	var repaired []string
	for _, key := range listKeys {
		if !r.obj.has(key) || r.broken[key] {
			repaired = append(repaired, key)
		}
	}
	if r.Categories == nil {
		r.Categories = []string{}
	}
	if r.Specifications == nil {
		r.Specifications = []Specification{}
	}
	if r.Parameters == nil {
		r.Parameters = []Parameter{}
	}
	if r.InputPorts == nil {
		r.InputPorts = []Port{}
	}
	if r.OutputPorts == nil {
		r.OutputPorts = []Port{}
	}
	r.broken = nil
	r.ensureLists = true
	return repaired
}

// FindParameter returns the parameter whose normalized name equals that of
// name, or nil.
func (r *AlgorithmRecord) FindParameter(name string) *Parameter {
	n := NormalizeName(name)
	if n == "" {
		return nil
	}
	for i := range r.Parameters {
		p := &r.Parameters[i]
		if p.opaque == nil && NormalizeName(p.Name) == n {
			return p
		}
	}
	return nil
}

// Ports returns the port list holding ports of the given role.
func (r *AlgorithmRecord) Ports(role Role) *[]Port {
	if role == RoleInput {
		return &r.InputPorts
	}
	return &r.OutputPorts
}

// FindPort returns the port of the given role whose name or busIdRef matches
// name, or nil.
func (r *AlgorithmRecord) FindPort(role Role, name string) *Port {
	n := NormalizeName(name)
	ports := r.Ports(role)
	for i := range *ports {
		p := &(*ports)[i]
		if p.opaque != nil {
			continue
		}
		if NormalizeName(p.Name) == n || (p.BusIDRef != "" && NormalizeName(p.BusIDRef) == n) {
			return p
		}
	}
	return nil
}

// BusParameters returns the parameters that select a bus.
func (r *AlgorithmRecord) BusParameters() []*Parameter {
	var out []*Parameter
	for i := range r.Parameters {
		if r.Parameters[i].IsBus() {
			out = append(out, &r.Parameters[i])
		}
	}
	return out
}

// DuplicateParameters lists normalized names held by more than one parameter.
func (r *AlgorithmRecord) DuplicateParameters() []string {
	seen := make(map[string]int)
	var dups []string
	for _, p := range r.Parameters {
		if p.opaque != nil {
			continue
		}
		n := NormalizeName(p.Name)
		seen[n]++
		if seen[n] == 2 {
			dups = append(dups, n)
		}
	}
	return dups
}

// Clone returns a deep copy of r.
func (r *AlgorithmRecord) Clone() *AlgorithmRecord {
	data, err := marshalNoEscape(r)
	if err != nil {
		panic(fmt.Sprintf("metadata: clone %s: %v", r.GUID, err))
	}
	var c AlgorithmRecord
	if err := json.Unmarshal(data, &c); err != nil {
		panic(fmt.Sprintf("metadata: clone %s: %v", r.GUID, err))
	}
	c.ensureLists = r.ensureLists
	return &c
}

func (r *AlgorithmRecord) UnmarshalJSON(data []byte) error {
	var obj object
	if err := obj.UnmarshalJSON(data); err != nil {
		return err
	}
	*r = AlgorithmRecord{obj: obj}

	obj.decode(keyGUID, &r.GUID)
	obj.decode(keyName, &r.Name)
	obj.decode(keyDescription, &r.Description)
	if !obj.decode(keyCategories, &r.Categories) && obj.has(keyCategories) {
		r.markBroken(keyCategories)
	}

	var raws []json.RawMessage
	if r.decodeList(keySpecifications, &raws) {
		r.Specifications = make([]Specification, len(raws))
		for i, raw := range raws {
			_ = r.Specifications[i].UnmarshalJSON(raw)
		}
	}
	if r.decodeList(keyParameters, &raws) {
		r.Parameters = make([]Parameter, len(raws))
		for i, raw := range raws {
			_ = r.Parameters[i].UnmarshalJSON(raw)
		}
	}
	for _, l := range []struct {
		key  string
		role Role
		dst  *[]Port
	}{
		{keyInputPorts, RoleInput, &r.InputPorts},
		{keyOutputPorts, RoleOutput, &r.OutputPorts},
	} {
		if !r.decodeList(l.key, &raws) {
			continue
		}
		*l.dst = make([]Port, len(raws))
		for i, raw := range raws {
			_ = (*l.dst)[i].UnmarshalJSON(raw)
			(*l.dst)[i].Role = l.role
		}
	}
	return nil
}

func (r *AlgorithmRecord) decodeList(key string, raws *[]json.RawMessage) bool {
	*raws = nil
	if !r.obj.has(key) {
		return false
	}
	if !r.obj.decode(key, raws) {
		r.markBroken(key)
		return false
	}
	return true
}

func (r *AlgorithmRecord) markBroken(key string) {
	if r.broken == nil {
		r.broken = make(map[string]bool)
	}
	r.broken[key] = true
}

func (r AlgorithmRecord) MarshalJSON() ([]byte, error) {
	o := r.obj.clone()
	if r.GUID != "" {
		if err := o.put(keyGUID, r.GUID); err != nil {
			return nil, err
		}
	}
	if r.Name != "" {
		if err := o.put(keyName, r.Name); err != nil {
			return nil, err
		}
	}
	lists := []struct {
		key string
		n   int
		v   any
	}{
		{keyCategories, len(r.Categories), r.Categories},
		{keySpecifications, len(r.Specifications), r.Specifications},
		{keyParameters, len(r.Parameters), r.Parameters},
		{keyInputPorts, len(r.InputPorts), r.InputPorts},
		{keyOutputPorts, len(r.OutputPorts), r.OutputPorts},
	}
	for _, l := range lists {
		write := l.n > 0 || r.ensureLists || (o.has(l.key) && !r.broken[l.key])
		if !write {
			continue
		}
		v := l.v
		if l.n == 0 {
			v = []any{}
		}
		if err := o.put(l.key, v); err != nil {
			return nil, err
		}
	}
	if r.Description != "" {
		if err := o.put(keyDescription, r.Description); err != nil {
			return nil, err
		}
	}
	return o.MarshalJSON()
}

// Encode renders rec in the stored form: two-space indented JSON with a
// trailing newline and no HTML escaping.
func Encode(rec *AlgorithmRecord) ([]byte, error) {
	compact, err := marshalNoEscape(rec)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", rec.GUID, err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, fmt.Errorf("indent %s: %w", rec.GUID, err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// Decode parses a stored record. Anything that is not a JSON object is
// reported as ErrMalformedRecord.
func Decode(data []byte) (*AlgorithmRecord, error) {
	var rec AlgorithmRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return &rec, nil
}

// Parameter is one algorithm parameter.
type Parameter struct {
	Name        string
	Unit        string
	Min         Number
	Max         Number
	Default     Number
	Scope       Scope
	Description string
	EnumValues  []string

	obj    object
	opaque json.RawMessage // entries that are not objects are kept as found
}

// IsBus reports whether the parameter selects a bus: it carries the bus
// unit, routing scope, or a name ending in input or output.
func (p *Parameter) IsBus() bool {
	if p.opaque != nil {
		return false
	}
	if p.Unit == "bus" || p.Scope == ScopeRouting {
		return true
	}
	n := NormalizeName(p.Name)
	return strings.HasSuffix(n, "input") || strings.HasSuffix(n, "output")
}

func (p *Parameter) UnmarshalJSON(data []byte) error {
	var obj object
	if err := obj.UnmarshalJSON(data); err != nil {
		*p = Parameter{opaque: append(json.RawMessage(nil), data...)}
		return nil
	}
	*p = Parameter{obj: obj}
	obj.decode("name", &p.Name)
	obj.decode("unit", &p.Unit)
	p.Min = numberMember(&obj, "min", "minValue")
	p.Max = numberMember(&obj, "max", "maxValue")
	p.Default = numberMember(&obj, "default", "defaultValue")
	var scope string
	if obj.decode("scope", &scope) {
		p.Scope = Scope(scope)
	}
	obj.decode("description", &p.Description)
	obj.decode("enumValues", &p.EnumValues)
	return nil
}

func (p Parameter) MarshalJSON() ([]byte, error) {
	if p.opaque != nil {
		return p.opaque, nil
	}
	o := p.obj.clone()
	fields := []struct {
		key string
		set bool
		v   any
	}{
		{"name", p.Name != "", p.Name},
		{"unit", p.Unit != "", p.Unit},
		{memberKey(&o, "min", "minValue"), !p.Min.IsZero(), p.Min},
		{memberKey(&o, "max", "maxValue"), !p.Max.IsZero(), p.Max},
		{memberKey(&o, "default", "defaultValue"), !p.Default.IsZero(), p.Default},
		{"description", p.Description != "", p.Description},
		{"scope", p.Scope != ScopeUnspecified, string(p.Scope)},
		{"enumValues", len(p.EnumValues) > 0, p.EnumValues},
	}
	for _, f := range fields {
		if !f.set {
			continue
		}
		if err := o.put(f.key, f.v); err != nil {
			return nil, err
		}
	}
	return o.MarshalJSON()
}

// Port is an entry of input_ports or output_ports. Legacy records list some
// ports as bare name strings; those stay strings until they gain a busIdRef.
type Port struct {
	Name     string
	BusIDRef string
	Role     Role // implied by the list holding the port

	bare   bool
	obj    object
	opaque json.RawMessage
}

// NewPort returns a port routing the named parameter.
func NewPort(param string, role Role) Port {
	return Port{Name: param, BusIDRef: param, Role: role}
}

// IsBare reports whether the port is stored as a plain name string.
func (p *Port) IsBare() bool { return p.bare && p.BusIDRef == "" }

func (p *Port) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		*p = Port{bare: true}
		return json.Unmarshal(trimmed, &p.Name)
	}
	var obj object
	if err := obj.UnmarshalJSON(data); err != nil {
		*p = Port{opaque: append(json.RawMessage(nil), data...)}
		return nil
	}
	*p = Port{obj: obj}
	obj.decode("name", &p.Name)
	obj.decode("busIdRef", &p.BusIDRef)
	return nil
}

func (p Port) MarshalJSON() ([]byte, error) {
	if p.opaque != nil {
		return p.opaque, nil
	}
	if p.IsBare() {
		return marshalNoEscape(p.Name)
	}
	o := p.obj.clone()
	if p.Name != "" {
		if err := o.put("name", p.Name); err != nil {
			return nil, err
		}
	}
	if p.BusIDRef != "" {
		if err := o.put("busIdRef", p.BusIDRef); err != nil {
			return nil, err
		}
	}
	return o.MarshalJSON()
}

// Specification is a construction-time setting of an algorithm, such as the
// number of channels.
type Specification struct {
	Name        string
	Unit        string
	Min         Number
	Max         Number
	Default     Number
	Description string

	obj    object
	opaque json.RawMessage
}

func (s *Specification) UnmarshalJSON(data []byte) error {
	var obj object
	if err := obj.UnmarshalJSON(data); err != nil {
		*s = Specification{opaque: append(json.RawMessage(nil), data...)}
		return nil
	}
	*s = Specification{obj: obj}
	obj.decode("name", &s.Name)
	obj.decode("unit", &s.Unit)
	s.Min = numberMember(&obj, "minValue", "min")
	s.Max = numberMember(&obj, "maxValue", "max")
	s.Default = numberMember(&obj, "defaultValue", "default")
	obj.decode("description", &s.Description)
	return nil
}

func (s Specification) MarshalJSON() ([]byte, error) {
	if s.opaque != nil {
		return s.opaque, nil
	}
	o := s.obj.clone()
	fields := []struct {
		key string
		set bool
		v   any
	}{
		{"name", s.Name != "", s.Name},
		{"unit", s.Unit != "", s.Unit},
		{memberKey(&o, "minValue", "min"), !s.Min.IsZero(), s.Min},
		{memberKey(&o, "maxValue", "max"), !s.Max.IsZero(), s.Max},
		{memberKey(&o, "defaultValue", "default"), !s.Default.IsZero(), s.Default},
		{"description", s.Description != "", s.Description},
	}
	for _, f := range fields {
		if !f.set {
			continue
		}
		if err := o.put(f.key, f.v); err != nil {
			return nil, err
		}
	}
	return o.MarshalJSON()
}

// numberMember reads the first present, non-null member among keys.
func numberMember(o *object, keys ...string) Number {
	for _, key := range keys {
		var n Number
		if o.decode(key, &n) {
			return n
		}
	}
	return Number{}
}

// memberKey picks the spelling to write a value under: the alias when only
// the alias is present, the preferred key otherwise.
func memberKey(o *object, preferred, alias string) string {
	if !o.has(preferred) && o.has(alias) {
		return alias
	}
	return preferred
}
