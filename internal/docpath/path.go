// Package docpath maps logical workflow contexts onto canonical hierarchical
// document addresses and back. It is pure: no I/O, and Resolve never fails.
// Malformed organizational names sanitize to fixed fallback tokens instead of
// producing an error, so a misspelled department can never break a write.
package docpath

import (
	"fmt"
	"strings"
)

// Collection names of the hierarchy, outermost first.
const (
	ColYears       = "years"
	ColDepartments = "departments"
	ColCourses     = "courses"
	ColGroups      = "groups"
	ColTheses      = "theses"
	ColStages      = "stages"
	ColChapters    = "chapters"
	ColSubmissions = "submissions"
	ColProposals   = "proposals"
)

// Fallback tokens used when a segment sanitizes to nothing.
const (
	FallbackYear       = "unsorted"
	FallbackDepartment = "general"
	FallbackCourse     = "common"
	FallbackGroup      = "ungrouped"
	FallbackStage      = "proposal"
	FallbackID         = "unknown"
)

// Context addresses a record in the year/department/course/group hierarchy.
// Trailing fields are optional; an empty field ends the path.
type Context struct {
	Year         string
	Department   string
	Course       string
	GroupID      string
	ThesisID     string
	Stage        string
	ChapterID    string
	SubmissionID string
}

// Sanitize canonicalizes one path segment: lower-cased, runs of
// non-alphanumerics collapsed to a single hyphen, leading and trailing
// hyphens stripped. Empty results yield the fallback token.
func Sanitize(raw, fallback string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if out == "" {
		return fallback
	}
	return out
}

// Normalize returns the context with every segment sanitized.
func (c Context) Normalize() Context {
	out := Context{
		Year:       Sanitize(c.Year, FallbackYear),
		Department: Sanitize(c.Department, FallbackDepartment),
		Course:     Sanitize(c.Course, FallbackCourse),
		GroupID:    Sanitize(c.GroupID, FallbackGroup),
	}
	if c.ThesisID != "" {
		out.ThesisID = Sanitize(c.ThesisID, FallbackID)
	}
	if c.Stage != "" {
		out.Stage = Sanitize(c.Stage, FallbackStage)
	}
	if c.ChapterID != "" {
		out.ChapterID = Sanitize(c.ChapterID, FallbackID)
	}
	if c.SubmissionID != "" {
		out.SubmissionID = Sanitize(c.SubmissionID, FallbackID)
	}
	return out
}

// Resolve produces the canonical address for the context. It is total: any
// context resolves to a valid address.
func Resolve(c Context) string {
	c = c.Normalize()
	parts := []string{
		ColYears, c.Year,
		ColDepartments, c.Department,
		ColCourses, c.Course,
		ColGroups, c.GroupID,
	}
	for _, tail := range []struct {
		col string
		id  string
	}{
		{ColTheses, c.ThesisID},
		{ColStages, c.Stage},
		{ColChapters, c.ChapterID},
		{ColSubmissions, c.SubmissionID},
	} {
		if tail.id == "" {
			break
		}
		parts = append(parts, tail.col, tail.id)
	}
	return strings.Join(parts, "/")
}

// GroupPath resolves only the group-level prefix of the context.
func GroupPath(c Context) string {
	c.ThesisID, c.Stage, c.ChapterID, c.SubmissionID = "", "", "", ""
	return Resolve(c)
}

// ProposalsCollection is the address of the group's proposal-set collection.
func ProposalsCollection(c Context) string {
	return GroupPath(c) + "/" + ColProposals
}

// ProposalDoc is the address of a single proposal set document.
func ProposalDoc(c Context, setID string) string {
	return ProposalsCollection(c) + "/" + Sanitize(setID, FallbackID)
}

// Parse extracts the Context from a canonical address. It is the inverse of
// Resolve for canonical input; unknown or misordered collection names fail.
func Parse(address string) (Context, error) {
	segments := strings.Split(strings.Trim(address, "/"), "/")
	if len(segments) < 8 || len(segments)%2 != 0 {
		return Context{}, fmt.Errorf("docpath: address %q is not group-rooted", address)
	}

	order := []struct {
		col string
		set func(*Context, string)
	}{
		{ColYears, func(c *Context, v string) { c.Year = v }},
		{ColDepartments, func(c *Context, v string) { c.Department = v }},
		{ColCourses, func(c *Context, v string) { c.Course = v }},
		{ColGroups, func(c *Context, v string) { c.GroupID = v }},
		{ColTheses, func(c *Context, v string) { c.ThesisID = v }},
		{ColStages, func(c *Context, v string) { c.Stage = v }},
		{ColChapters, func(c *Context, v string) { c.ChapterID = v }},
		{ColSubmissions, func(c *Context, v string) { c.SubmissionID = v }},
	}

	var ctx Context
	for i := 0; i*2 < len(segments); i++ {
		if i >= len(order) {
			return Context{}, fmt.Errorf("docpath: address %q is too deep", address)
		}
		col, id := segments[i*2], segments[i*2+1]
		if col != order[i].col {
			return Context{}, fmt.Errorf("docpath: expected collection %q at position %d, got %q", order[i].col, i, col)
		}
		if id == "" {
			return Context{}, fmt.Errorf("docpath: empty id for collection %q", col)
		}
		order[i].set(&ctx, id)
	}
	return ctx, nil
}

// ParseProposalDoc splits a proposal-set document address into its group
// context and set id.
func ParseProposalDoc(address string) (Context, string, error) {
	idx := strings.LastIndex(address, "/"+ColProposals+"/")
	if idx < 0 {
		return Context{}, "", fmt.Errorf("docpath: %q is not a proposal document address", address)
	}
	ctx, err := Parse(address[:idx])
	if err != nil {
		return Context{}, "", err
	}
	setID := address[idx+len(ColProposals)+2:]
	if setID == "" || strings.Contains(setID, "/") {
		return Context{}, "", fmt.Errorf("docpath: invalid proposal set id in %q", address)
	}
	return ctx, setID, nil
}
