// Package reconcile merges facts read from the manual into stored records.
//
// Every merge is fill-only: a parameter may be added or an absent field set,
// but a populated value is never replaced. Running a merge twice with the
// same input changes nothing the second time.
package reconcile

import (
	"fmt"
	"strings"

	"algometa/internal/manual"
	"algometa/internal/metadata"
)

// Changes describes what a merge did to a record.
type Changes struct {
	ParamsAdded    []string
	FieldsFilled   []string // "<param>.<field>" or a record member name
	PortsAdded     []string
	PortsConverted []string // bare string ports that gained a busIdRef
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return len(c.ParamsAdded) == 0 && len(c.FieldsFilled) == 0 &&
		len(c.PortsAdded) == 0 && len(c.PortsConverted) == 0
}

// Add appends o to c.
func (c *Changes) Add(o Changes) {
	c.ParamsAdded = append(c.ParamsAdded, o.ParamsAdded...)
	c.FieldsFilled = append(c.FieldsFilled, o.FieldsFilled...)
	c.PortsAdded = append(c.PortsAdded, o.PortsAdded...)
	c.PortsConverted = append(c.PortsConverted, o.PortsConverted...)
}

func (c Changes) String() string {
	return fmt.Sprintf("params+%d fields+%d ports+%d converted=%d",
		len(c.ParamsAdded), len(c.FieldsFilled), len(c.PortsAdded), len(c.PortsConverted))
}

// Rows merges parsed table rows into rec. Existing parameters are matched by
// normalized name and only have absent fields filled; their scope is left
// alone. Unmatched rows become new parameters, routed ones with a port.
func Rows(rec *metadata.AlgorithmRecord, rows []manual.Row) Changes {
	var c Changes
	for _, row := range rows {
		if p := rec.FindParameter(row.Name); p != nil {
			fillParameter(&c, p, fields{
				unit: row.Unit, min: row.Min, max: row.Max, def: row.Default, desc: row.Description,
			})
			continue
		}
		scope := row.Scope
		if metadata.IsRoutingName(row.Name) {
			scope = metadata.ScopeRouting
		}
		rec.Parameters = append(rec.Parameters, metadata.Parameter{
			Name:        row.Name,
			Unit:        row.Unit,
			Min:         row.Min,
			Max:         row.Max,
			Default:     row.Default,
			Scope:       scope,
			Description: row.Description,
		})
		c.ParamsAdded = append(c.ParamsAdded, row.Name)
		if scope == metadata.ScopeRouting {
			addPort(&c, rec, row.Name, false)
		}
	}
	return c
}

// Buses merges bus selectors found by the bus heuristic. Matching parameters
// get unit "bus" and routing scope when those are unset, and every bus gets
// a port.
func Buses(rec *metadata.AlgorithmRecord, buses []manual.Bus) Changes {
	var c Changes
	names := make([]string, 0, len(buses))
	for _, b := range buses {
		names = append(names, b.Name)
		if p := rec.FindParameter(b.Name); p != nil {
			fillParameter(&c, p, fields{unit: "bus", min: b.Min, max: b.Max, def: b.Default, scope: metadata.ScopeRouting})
			continue
		}
		rec.Parameters = append(rec.Parameters, metadata.Parameter{
			Name:    b.Name,
			Unit:    "bus",
			Min:     b.Min,
			Max:     b.Max,
			Default: b.Default,
			Scope:   metadata.ScopeRouting,
		})
		c.ParamsAdded = append(c.ParamsAdded, b.Name)
	}
	c.Add(EnsurePorts(rec, names))
	return c
}

// EnsurePorts gives every named parameter a port in the list its name
// classifies it into. A matching port without a busIdRef, including a bare
// string entry, is pointed at the parameter.
func EnsurePorts(rec *metadata.AlgorithmRecord, names []string) Changes {
	var c Changes
	for _, name := range names {
		addPort(&c, rec, name, true)
	}
	return c
}

func addPort(c *Changes, rec *metadata.AlgorithmRecord, name string, attach bool) {
	role := metadata.ClassifyPort(name)
	if port := rec.FindPort(role, name); port != nil {
		if attach && port.BusIDRef == "" {
			port.BusIDRef = name
			c.PortsConverted = append(c.PortsConverted, name)
		}
		return
	}
	ports := rec.Ports(role)
	*ports = append(*ports, metadata.NewPort(name, role))
	c.PortsAdded = append(c.PortsAdded, string(role)+":"+name)
}

// FillSummary sets the record description and specifications from the
// manual when they are empty.
func FillSummary(rec *metadata.AlgorithmRecord, sum manual.Summary) Changes {
	var c Changes
	if strings.TrimSpace(rec.Description) == "" && sum.Description != "" {
		rec.Description = sum.Description
		c.FieldsFilled = append(c.FieldsFilled, "description")
	}
	if len(rec.Specifications) == 0 && len(sum.Specifications) > 0 {
		rec.Specifications = append([]metadata.Specification(nil), sum.Specifications...)
		c.FieldsFilled = append(c.FieldsFilled, "specifications")
	}
	return c
}

// MergeRecord folds an externally produced record into rec with the same
// fill-only rules used for manual rows.
func MergeRecord(rec, in *metadata.AlgorithmRecord) Changes {
	var c Changes
	if in.Name != "" && (rec.Name == "" || rec.Name == rec.GUID) && in.Name != rec.Name {
		rec.Name = in.Name
		c.FieldsFilled = append(c.FieldsFilled, "name")
	}
	if len(rec.Categories) == 0 && len(in.Categories) > 0 {
		rec.Categories = append([]string(nil), in.Categories...)
		c.FieldsFilled = append(c.FieldsFilled, "categories")
	}
	c.Add(FillSummary(rec, manual.Summary{Description: in.Description, Specifications: in.Specifications}))

	for _, q := range in.Parameters {
		if q.Name == "" {
			continue
		}
		if p := rec.FindParameter(q.Name); p != nil {
			fillParameter(&c, p, fields{
				unit: q.Unit, min: q.Min, max: q.Max, def: q.Default,
				desc: q.Description, scope: q.Scope, enum: q.EnumValues,
			})
			continue
		}
		rec.Parameters = append(rec.Parameters, q)
		c.ParamsAdded = append(c.ParamsAdded, q.Name)
	}

	for _, role := range []metadata.Role{metadata.RoleInput, metadata.RoleOutput} {
		for _, port := range *in.Ports(role) {
			if port.Name == "" || rec.FindPort(role, port.Name) != nil {
				continue
			}
			if port.BusIDRef != "" && rec.FindPort(role, port.BusIDRef) != nil {
				continue
			}
			port.Role = role
			ports := rec.Ports(role)
			*ports = append(*ports, port)
			c.PortsAdded = append(c.PortsAdded, string(role)+":"+port.Name)
		}
	}
	return c
}

// fields are candidate values for an existing parameter.
type fields struct {
	unit, desc    string
	min, max, def metadata.Number
	scope         metadata.Scope
	enum          []string
}

func fillParameter(c *Changes, p *metadata.Parameter, f fields) {
	fill := func(field string) {
		c.FieldsFilled = append(c.FieldsFilled, p.Name+"."+field)
	}
	if p.Min.IsZero() && !f.min.IsZero() {
		p.Min = f.min
		fill("min")
	}
	if p.Max.IsZero() && !f.max.IsZero() {
		p.Max = f.max
		fill("max")
	}
	if p.Default.IsZero() && !f.def.IsZero() {
		p.Default = f.def
		fill("default")
	}
	if p.Unit == "" && f.unit != "" {
		p.Unit = f.unit
		fill("unit")
	}
	if p.Description == "" && f.desc != "" {
		p.Description = f.desc
		fill("description")
	}
	if p.Scope == metadata.ScopeUnspecified && f.scope != metadata.ScopeUnspecified {
		p.Scope = f.scope
		fill("scope")
	}
	if len(p.EnumValues) == 0 && len(f.enum) > 0 {
		p.EnumValues = append([]string(nil), f.enum...)
		fill("enumValues")
	}
}
