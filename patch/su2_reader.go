package patch

import (
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"gonum.org/v1/gonum/spatial/r3"
)

// su2NodeCount maps the SU2/VTK element identifiers to their vertex counts
var su2NodeCount = map[int]int{
	3:  2, // VTK_LINE
	5:  3, // VTK_TRIANGLE
	9:  4, // VTK_QUAD
	10: 4, // VTK_TETRA
	12: 8, // VTK_HEXAHEDRON
	13: 6, // VTK_WEDGE
	14: 5, // VTK_PYRAMID
}

func isSurfaceElement(su2Type int) bool { return su2Type == 5 || su2Type == 9 }

type su2File struct {
	ndime       int
	points      []r3.Vec
	surface     [][]int // triangles and quads of the NELEM section
	markers     map[string][][]int
	markerOrder []string
}

// ReadSU2 reads a patch from an SU2 native file. With a marker name the
// faces of that MARKER_TAG are used, otherwise the triangles and quads of
// the NELEM section, otherwise the only marker in the file. Points not used
// by a selected face are dropped.
func ReadSU2(fs afero.Fs, filename, marker string) (p *Patch, err error) {
	file, err := fs.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	sf, err := parseSU2(bufio.NewScanner(file))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	var (
		faces [][]int
		name  = marker
	)
	switch {
	case marker != "":
		var ok bool
		if faces, ok = sf.markers[marker]; !ok {
			return nil, fmt.Errorf("reading %s: no marker %q, have %v", filename, marker, sf.markerOrder)
		}
	case len(sf.surface) != 0:
		faces, name = sf.surface, filename
	case len(sf.markers) == 1:
		name = sf.markerOrder[0]
		faces = sf.markers[name]
	default:
		return nil, fmt.Errorf("reading %s: no surface elements, choose a marker from %v",
			filename, sf.markerOrder)
	}
	ids := make([]int, len(faces))
	for i := range ids {
		ids[i] = i
	}
	return New(name, sf.points, faces).Subset(name, ids), nil
}

func parseSU2(scanner *bufio.Scanner) (sf *su2File, err error) {
	var (
		hasNDIME, hasNPOIN bool
	)
	sf = &su2File{markers: make(map[string][][]int)}
	next := func(what string) (string, error) {
		for scanner.Scan() {
			line := stripComment(scanner.Text())
			if line != "" {
				return line, nil
			}
		}
		return "", fmt.Errorf("unexpected EOF reading %s", what)
	}
	for scanner.Scan() {
		line := stripComment(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "NDIME="):
			hasNDIME = true
			if _, err = fmt.Sscanf(line, "NDIME=%d", &sf.ndime); err != nil {
				return nil, fmt.Errorf("invalid NDIME line: %s", line)
			}
			if sf.ndime != 2 && sf.ndime != 3 {
				return nil, fmt.Errorf("unsupported dimension: NDIME=%d", sf.ndime)
			}
		case strings.HasPrefix(line, "NPOIN="):
			if !hasNDIME {
				return nil, fmt.Errorf("NPOIN= before NDIME=")
			}
			hasNPOIN = true
			var npoin int
			if _, err = fmt.Sscanf(line, "NPOIN=%d", &npoin); err != nil {
				return nil, fmt.Errorf("invalid NPOIN line: %s", line)
			}
			sf.points = make([]r3.Vec, npoin)
			for i := 0; i < npoin; i++ {
				if line, err = next("nodes"); err != nil {
					return
				}
				fields := strings.Fields(line)
				if len(fields) < sf.ndime {
					return nil, fmt.Errorf("invalid node line %d: expected %d coordinates", i, sf.ndime)
				}
				var c [3]float64
				for j := 0; j < sf.ndime; j++ {
					if c[j], err = strconv.ParseFloat(fields[j], 64); err != nil {
						return nil, fmt.Errorf("invalid coordinate: %w", err)
					}
				}
				sf.points[i] = r3.Vec{X: c[0], Y: c[1], Z: c[2]}
			}
		case strings.HasPrefix(line, "NELEM="):
			var nelem int
			if _, err = fmt.Sscanf(line, "NELEM=%d", &nelem); err != nil {
				return nil, fmt.Errorf("invalid NELEM line: %s", line)
			}
			for i := 0; i < nelem; i++ {
				if line, err = next("elements"); err != nil {
					return
				}
				su2Type, nodes, perr := parseElement(line, len(sf.points))
				if perr != nil {
					return nil, fmt.Errorf("element %d: %w", i, perr)
				}
				if isSurfaceElement(su2Type) {
					sf.surface = append(sf.surface, nodes)
				}
			}
		case strings.HasPrefix(line, "NMARK="):
			var nmark int
			if _, err = fmt.Sscanf(line, "NMARK=%d", &nmark); err != nil {
				return nil, fmt.Errorf("invalid NMARK line: %s", line)
			}
			for i := 0; i < nmark; i++ {
				if line, err = next("markers"); err != nil {
					return
				}
				if !strings.HasPrefix(line, "MARKER_TAG=") {
					return nil, fmt.Errorf("expected MARKER_TAG=, got: %s", line)
				}
				tag := strings.TrimSpace(strings.TrimPrefix(line, "MARKER_TAG="))
				if line, err = next("marker elements for " + tag); err != nil {
					return
				}
				var nMarkerElems int
				if _, err = fmt.Sscanf(line, "MARKER_ELEMS=%d", &nMarkerElems); err != nil {
					return nil, fmt.Errorf("invalid MARKER_ELEMS line: %s", line)
				}
				faces := make([][]int, 0, nMarkerElems)
				for j := 0; j < nMarkerElems; j++ {
					if line, err = next("boundary elements"); err != nil {
						return
					}
					su2Type, nodes, perr := parseElement(line, len(sf.points))
					if perr != nil {
						return nil, fmt.Errorf("marker %s element %d: %w", tag, j, perr)
					}
					if !isSurfaceElement(su2Type) {
						return nil, fmt.Errorf("marker %s element %d: type %d is not a surface element",
							tag, j, su2Type)
					}
					faces = append(faces, nodes)
				}
				if _, exists := sf.markers[tag]; !exists {
					sf.markerOrder = append(sf.markerOrder, tag)
				}
				sf.markers[tag] = append(sf.markers[tag], faces...)
			}
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	if !hasNDIME {
		return nil, fmt.Errorf("missing required NDIME= section")
	}
	if !hasNPOIN {
		return nil, fmt.Errorf("missing required NPOIN= section")
	}
	return sf, nil
}

func parseElement(line string, npoin int) (su2Type int, nodes []int, err error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, nil, fmt.Errorf("invalid element line: %s", line)
	}
	if su2Type, err = strconv.Atoi(fields[0]); err != nil {
		return 0, nil, fmt.Errorf("invalid element type: %w", err)
	}
	numNodes, ok := su2NodeCount[su2Type]
	if !ok {
		return 0, nil, fmt.Errorf("unknown element type: %d", su2Type)
	}
	if len(fields) < numNodes+1 {
		return 0, nil, fmt.Errorf("element type %d expects %d nodes, got %d fields",
			su2Type, numNodes, len(fields)-1)
	}
	nodes = make([]int, numNodes)
	for j := range nodes {
		if nodes[j], err = strconv.Atoi(fields[1+j]); err != nil {
			return 0, nil, fmt.Errorf("invalid node index: %w", err)
		}
		if nodes[j] < 0 || nodes[j] >= npoin {
			return 0, nil, fmt.Errorf("node index %d out of range [0,%d)", nodes[j], npoin)
		}
	}
	return
}

func stripComment(line string) string {
	if idx := strings.Index(line, "%"); idx >= 0 {
		line = line[:idx]
	}
	return strings.TrimSpace(line)
}

// WriteSU2 writes the patches as markers of one surface file sharing a
// single point list.
func WriteSU2(fs afero.Fs, filename string, patches ...*Patch) (err error) {
	file, err := fs.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	var (
		w       = bufio.NewWriter(file)
		offsets = make([]int, len(patches))
		npoin   int
	)
	for i, p := range patches {
		offsets[i] = npoin
		npoin += len(p.Points)
	}
	fmt.Fprintf(w, "%% written by goami\nNDIME= 3\nNPOIN= %d\n", npoin)
	for _, p := range patches {
		for _, x := range p.Points {
			fmt.Fprintf(w, "%.17g %.17g %.17g\n", x.X, x.Y, x.Z)
		}
	}
	fmt.Fprintf(w, "NELEM= 0\nNMARK= %d\n", len(patches))
	names := make(map[string]bool)
	for i, p := range patches {
		if names[p.Name] {
			return fmt.Errorf("duplicate marker name %q", p.Name)
		}
		names[p.Name] = true
		fmt.Fprintf(w, "MARKER_TAG= %s\nMARKER_ELEMS= %d\n", p.Name, len(p.Faces))
		for j, f := range p.Faces {
			var su2Type int
			switch len(f) {
			case 3:
				su2Type = 5
			case 4:
				su2Type = 9
			default:
				return fmt.Errorf("patch %s face %d: SU2 has no %d sided surface element", p.Name, j, len(f))
			}
			fmt.Fprintf(w, "%d", su2Type)
			for _, v := range f {
				fmt.Fprintf(w, " %d", v+offsets[i])
			}
			fmt.Fprintln(w)
		}
	}
	return w.Flush()
}

// MarkerNames lists the marker tags of an SU2 file in sorted order.
func MarkerNames(fs afero.Fs, filename string) (names []string, err error) {
	file, err := fs.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	sf, err := parseSU2(bufio.NewScanner(file))
	if err != nil {
		return nil, err
	}
	names = append(names, sf.markerOrder...)
	sort.Strings(names)
	return
}
