/*
Copyright © 2025 The Knot Language Authors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package compiler

import "knotlang.dev/knot/set"

// Severity grades a diagnostic.
type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityInfo
	SeverityHint
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

// Diagnostic is a single compiler finding attached to a source position.
// Diagnostics are comparable so that a compile's diagnostic set can be
// deduplicated by identity.
type Diagnostic struct {
	File     string
	Line     int
	Col      int
	Severity Severity
	Code     string
	Message  string
}

// Diagnostics is an insertion-ordered, identity-deduplicated collection of
// diagnostics, in the order the compiler emitted them.
type Diagnostics = *set.Ordered[Diagnostic]

// NewDiagnostics returns an empty diagnostic set.
func NewDiagnostics(ds ...Diagnostic) Diagnostics {
	return set.NewOrdered(ds...)
}
