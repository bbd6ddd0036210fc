// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package auth implements the single capability check spec.md §7 names: a
// write attempt without can_write fails with a PermissionError. This is
// deliberately the entire authorization surface — spec.md's Non-goals
// exclude user authentication beyond this one check.
package auth

import (
	"sort"
	"strings"

	htsqlerrors "github.com/prometheusresearch/htsql-go/core/errors"
)

// Permission is a bitset of what an Environment may do, kept as the
// teacher's own Permission bitset (ReadPerm/WritePerm, now CanRead/
// CanWrite) rather than a single bool, so a future capability slots in
// without a breaking change.
type Permission int

const (
	// CanRead permits query compilation and execution.
	CanRead Permission = 1 << iota
	// CanWrite permits insert/update/merge/delete statements (spec.md §7).
	CanWrite
)

// AllPermissions holds every defined permission.
const AllPermissions = CanRead | CanWrite

// DefaultPermissions are granted to an Environment that does not configure
// capabilities explicitly: read-only, matching the teacher's
// DefaultPermissions stance.
const DefaultPermissions = CanRead

// PermissionNames translates between human and machine representations.
var PermissionNames = map[string]Permission{
	"read":  CanRead,
	"write": CanWrite,
}

func (p Permission) String() string {
	var names []string
	for name, bit := range PermissionNames {
		if p&bit != 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// Environment carries the capability set a compiled plan executes under.
type Environment struct {
	Permissions Permission
}

// NewEnvironment creates an Environment with DefaultPermissions.
func NewEnvironment() *Environment {
	return &Environment{Permissions: DefaultPermissions}
}

// Grant returns a copy of env with perm added.
func (env *Environment) Grant(perm Permission) *Environment {
	return &Environment{Permissions: env.Permissions | perm}
}

// Allowed reports whether env carries every bit of perm.
func (env *Environment) Allowed(perm Permission) bool {
	return env != nil && env.Permissions&perm == perm
}

// CheckWrite returns a PermissionError unless env carries CanWrite.
func CheckWrite(env *Environment) error {
	if !env.Allowed(CanWrite) {
		return htsqlerrors.Permission.New("write attempted without can_write capability")
	}
	return nil
}
