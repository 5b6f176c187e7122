package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/nblist/internal/geometry"
)

// readXYZ parses an XYZ file: a count line, a comment line, then one
// "element x y z" line per particle.
func readXYZ(r io.Reader) (geometry.Coordinates3, []string, error) {
	sc := bufio.NewScanner(r)
	line := 0
	next := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		line++
		return sc.Text(), true
	}

	head, ok := next()
	if !ok {
		return nil, nil, fmt.Errorf("xyz: empty input")
	}
	n, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil || n < 0 {
		return nil, nil, fmt.Errorf("xyz: line 1: bad particle count %q", head)
	}
	if _, ok := next(); !ok {
		return nil, nil, fmt.Errorf("xyz: missing comment line")
	}

	coords := make(geometry.Coordinates3, 0, n)
	elements := make([]string, 0, n)
	for len(coords) < n {
		text, ok := next()
		if !ok {
			return nil, nil, fmt.Errorf("xyz: expected %d particles, got %d", n, len(coords))
		}
		fields := strings.Fields(text)
		if len(fields) < 4 {
			return nil, nil, fmt.Errorf("xyz: line %d: want element and three coordinates", line)
		}
		var v [3]float64
		for d := range v {
			if v[d], err = strconv.ParseFloat(fields[d+1], 64); err != nil {
				return nil, nil, fmt.Errorf("xyz: line %d: %w", line, err)
			}
		}
		coords = append(coords, r3.Vec{X: v[0], Y: v[1], Z: v[2]})
		elements = append(elements, fields[0])
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("xyz: %w", err)
	}
	return coords, elements, nil
}

// parseFloats parses a comma-separated list of want numbers.
func parseFloats(s string, want int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != want {
		return nil, fmt.Errorf("want %d comma-separated values, got %q", want, s)
	}
	out := make([]float64, want)
	for k, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
