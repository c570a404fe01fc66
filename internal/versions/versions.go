// Package versions orders and dissects toolchain version strings.
package versions

/* Compare file names containing version numbers.

   Copyright (C) 1995 Ian Jackson <iwj10@cus.cam.ac.uk>
   Copyright (C) 2001 Anthony Towns <aj@azure.humbug.org.au>
   Copyright (C) 2008-2025 Free Software Foundation, Inc.

   This file is free software: you can redistribute it and/or modify
   it under the terms of the GNU Lesser General Public License as
   published by the Free Software Foundation, either version 3 of the
   License, or (at your option) any later version.

   This file is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU Lesser General Public License for more details.

   You should have received a copy of the GNU Lesser General Public License
   along with this program.  If not, see <https://www.gnu.org/licenses/>.  */

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Compare compares two version strings the way GNU sort -V does and returns
// -1, 0 or +1.
//
// Non-digit runs compare character by character, with letters before other
// characters and '~' before everything, including the end of the string.
// Digit runs compare by numeric value.
func Compare(a, b string) int {
	switch c := verrevcmp(a, b); {
	case c < 0:
		return -1
	case c > 0:
		return 1
	}
	return 0
}

func verrevcmp(s1, s2 string) int {
	i, j := 0, 0
	for i < len(s1) || j < len(s2) {
		for (i < len(s1) && !isDigit(s1[i])) || (j < len(s2) && !isDigit(s2[j])) {
			c1, c2 := order(s1, i), order(s2, j)
			if c1 != c2 {
				return c1 - c2
			}
			i++
			j++
		}
		for i < len(s1) && s1[i] == '0' {
			i++
		}
		for j < len(s2) && s2[j] == '0' {
			j++
		}
		diff := 0
		for i < len(s1) && j < len(s2) && isDigit(s1[i]) && isDigit(s2[j]) {
			if diff == 0 {
				diff = int(s1[i]) - int(s2[j])
			}
			i++
			j++
		}
		if i < len(s1) && isDigit(s1[i]) {
			return 1
		}
		if j < len(s2) && isDigit(s2[j]) {
			return -1
		}
		if diff != 0 {
			return diff
		}
	}
	return 0
}

// order returns the sort weight of s[i]; positions past the end weigh zero.
func order(s string, i int) int {
	if i >= len(s) {
		return 0
	}
	c := s[i]
	switch {
	case isDigit(c):
		return 0
	case isAlpha(c):
		return int(c)
	case c == '~':
		return -1
	}
	return int(c) + 256
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

// Major returns the leading numeric component of v: "12" for "12.2.0".
func Major(v string) string {
	v = strings.TrimSpace(v)
	if sv := "v" + v; semver.IsValid(sv) {
		return strings.TrimPrefix(semver.Major(sv), "v")
	}
	major, _, _ := strings.Cut(v, ".")
	return major
}

// ProgramSuffix returns the executable suffix GCC is configured with:
// "-<major>.<minor>" for x.y.0 releases and "-<version>" otherwise.
func ProgramSuffix(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasSuffix(v, ".0") {
		return "-" + v
	}
	if sv := "v" + v; semver.IsValid(sv) && strings.Count(v, ".") == 2 {
		return "-" + strings.TrimPrefix(semver.MajorMinor(sv), "v")
	}
	return "-" + strings.TrimSuffix(v, ".0")
}
