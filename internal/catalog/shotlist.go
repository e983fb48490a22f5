package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// audioRowID marks the CSV row that carries the soundtrack instead of a shot.
const audioRowID = "audio"

var csvColumns = []string{"shot_id", "reparto", "frame_path", "start_frame", "end_frame"}

// ShotList is the YAML form of a shot list.
type ShotList struct {
	Audio string `yaml:"audio,omitempty"`
	Shots []Shot `yaml:"shots"`
}

// ReadFile loads a shot list, choosing the format by extension (.yaml/.yml or CSV).
func ReadFile(path string) (*Catalog, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ReadYAML(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseCSV(f)
}

// ParseCSV reads the review shot-list format.
func ParseCSV(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.ToLower(h))] = i
	}
	for _, col := range csvColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var shots []Shot
	var audio string
	line := 1
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		field := func(col string) string {
			i := idx[col]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		if strings.EqualFold(field("shot_id"), audioRowID) {
			audio = field("frame_path")
			continue
		}

		start, err := strconv.Atoi(field("start_frame"))
		if err != nil {
			return nil, fmt.Errorf("line %d: start_frame: %w", line, err)
		}
		end, err := strconv.Atoi(field("end_frame"))
		if err != nil {
			return nil, fmt.Errorf("line %d: end_frame: %w", line, err)
		}
		shots = append(shots, Shot{
			ID:           field("shot_id"),
			Department:   field("reparto"),
			PathTemplate: field("frame_path"),
			StartFrame:   start,
			EndFrame:     end,
		})
	}
	return New(shots, audio)
}

// WriteCSV writes the catalog back in the review shot-list format.
func WriteCSV(w io.Writer, c *Catalog) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return err
	}
	if c.audioPath != "" {
		if err := cw.Write([]string{audioRowID, "", c.audioPath, "", ""}); err != nil {
			return err
		}
	}
	for _, s := range c.shots {
		rec := []string{s.ID, s.Department, s.PathTemplate, strconv.Itoa(s.StartFrame), strconv.Itoa(s.EndFrame)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadYAML loads a YAML shot list.
func ReadYAML(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var list ShotList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return New(list.Shots, list.Audio)
}

// WriteYAML stores the catalog as a YAML shot list.
func WriteYAML(c *Catalog, path string) error {
	data, err := yaml.Marshal(&ShotList{Audio: c.audioPath, Shots: c.shots})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
