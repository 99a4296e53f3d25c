package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Project is one roster entry.
type Project struct {
	ID   int64
	Name string
}

// LoadProjects reads a roster CSV file.
func LoadProjects(path string) ([]Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseProjects(f)
}

// ParseProjects reads a roster with the header "project_id,project_name".
// Column order is free and extra columns are ignored. Rows with a
// non-numeric id are errors; duplicate ids keep the last name.
func ParseProjects(r io.Reader) ([]Project, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("projects csv: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("projects csv: %w", err)
	}
	idCol, nameCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "project_id":
			idCol = i
		case "project_name":
			nameCol = i
		}
	}
	if idCol < 0 || nameCol < 0 {
		return nil, errors.New("projects csv: header must contain project_id and project_name")
	}

	var out []Project
	index := make(map[int64]int)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("projects csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if idCol >= len(rec) {
			return nil, fmt.Errorf("projects csv line %d: missing project_id", line)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(rec[idCol]), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("projects csv line %d: invalid project_id %q", line, rec[idCol])
		}
		name := ""
		if nameCol < len(rec) {
			name = strings.TrimSpace(rec[nameCol])
		}
		if name == "" {
			name = "project " + strconv.FormatInt(id, 10)
		}
		if i, ok := index[id]; ok {
			out[i].Name = name
			continue
		}
		index[id] = len(out)
		out = append(out, Project{ID: id, Name: name})
	}
	return out, nil
}
