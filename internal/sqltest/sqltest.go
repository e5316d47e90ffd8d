// Copyright 2023-present The Modeldiff Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package sqltest provides helpers for testing drivers against
// sqlmock connections.
package sqltest

import (
	"database/sql/driver"
	"regexp"
	"strings"

	"github.com/DATA-DOG/go-sqlmock"
)

// Rows converts psql-style table output to sqlmock rows. All row values
// are parsed as text except the "nil" and NULL keywords, which are
// converted to nil values. For example:
//
//	  setting
//	------------
//	 en_US.utf8
//	 en_US.utf8
//	 130000
func Rows(table string) *sqlmock.Rows {
	var (
		nc   int
		rows *sqlmock.Rows
	)
	for _, line := range strings.Split(table, "\n") {
		line = strings.TrimSpace(line)
		// Skip empty lines, headers and footers.
		if line == "" || strings.IndexAny(line, "+-") == 0 {
			continue
		}
		columns := strings.FieldsFunc(line, func(r rune) bool { return r == '|' })
		for i, c := range columns {
			columns[i] = strings.TrimSpace(c)
		}
		if rows == nil {
			nc = len(columns)
			rows = sqlmock.NewRows(columns)
			continue
		}
		values := make([]driver.Value, nc)
		for i, c := range columns {
			if c != "" && c != "nil" && c != "NULL" {
				values[i] = c
			}
		}
		rows.AddRow(values...)
	}
	return rows
}

// Escape escapes all regular expression metacharacters in the given query.
func Escape(query string) string {
	lines := strings.Split(query, "\n")
	for i := range lines {
		lines[i] = strings.TrimPrefix(lines[i], " ")
	}
	return strings.TrimSpace(regexp.QuoteMeta(strings.Join(lines, " "))) + "$"
}
