package groundtruth

import (
	"bufio"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"gophospho/domain/core"
	apperrors "gophospho/internal/errors"
)

// GenePair is one raw database interaction between two genes
type GenePair struct {
	A, B  core.GeneID
	Score float64
}

// Threshold filters scored links: a link is kept when its score is strictly
// above Min, or above Min*max(score) when FractionOfMax is set.
type Threshold struct {
	Min           float64
	FractionOfMax bool
}

// ReadSTRING parses a STRING protein.links file
// ("protein1 protein2 combined_score", space separated). The taxon prefix
// of protein ids ("4932.YAL001C") is stripped.
func ReadSTRING(r io.Reader, th Threshold) ([]GenePair, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var all []GenePair
	maxScore := 0.0
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if line == 1 && fields[0] == "protein1" {
			continue
		}
		if len(fields) < 3 {
			return nil, apperrors.InvalidInput("STRING line %d: expected 3 fields, got %d", line, len(fields))
		}
		score, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, apperrors.InvalidInput("STRING line %d: bad score %q", line, fields[2])
		}
		if score > maxScore {
			maxScore = score
		}
		all = append(all, GenePair{A: stripTaxon(fields[0]), B: stripTaxon(fields[1]), Score: score})
	}
	if err := sc.Err(); err != nil {
		return nil, apperrors.Wrap(err, "reading STRING links")
	}

	cut := th.Min
	if th.FractionOfMax {
		cut = th.Min * maxScore
	}
	out := all[:0]
	for _, p := range all {
		if p.Score > cut {
			out = append(out, p)
		}
	}
	return out, nil
}

func stripTaxon(id string) core.GeneID {
	if i := strings.Index(id, "."); i >= 0 {
		return core.GeneID(id[i+1:])
	}
	return core.GeneID(id)
}

// ReadPhosphoGrid parses the PhosphoGrid site table. Each site row yields
// (kinase, ORF_NAME) for every ORF in the "|" separated KINASES_ORFS
// column, and likewise for PHOSPHATASES_ORFS when phosphatases is set.
// "-" marks an empty list.
func ReadPhosphoGrid(r io.Reader, phosphatases bool) ([]GenePair, error) {
	rows, header, err := readTSV(r, "")
	if err != nil {
		return nil, apperrors.Wrap(err, "reading PhosphoGrid")
	}
	orf, ok := header["ORF_NAME"]
	if !ok {
		return nil, apperrors.InvalidInput("PhosphoGrid table has no ORF_NAME column")
	}
	kin, ok := header["KINASES_ORFS"]
	if !ok {
		return nil, apperrors.InvalidInput("PhosphoGrid table has no KINASES_ORFS column")
	}
	cols := []int{kin}
	if phosphatases {
		if ph, ok := header["PHOSPHATASES_ORFS"]; ok {
			cols = append(cols, ph)
		}
	}

	var out []GenePair
	for _, rec := range rows {
		if orf >= len(rec) {
			continue
		}
		target := core.GeneID(strings.TrimSpace(rec[orf]))
		for _, c := range cols {
			if c >= len(rec) {
				continue
			}
			for _, k := range strings.Split(rec[c], "|") {
				k = strings.TrimSpace(k)
				if k == "" || k == "-" {
					continue
				}
				out = append(out, GenePair{A: core.GeneID(k), B: target, Score: 1})
			}
		}
	}
	return out, nil
}

// ReadBioGRID parses a BioGRID tab export. Everything before the header
// line starting with INTERACTOR_A is preamble.
func ReadBioGRID(r io.Reader) ([]GenePair, error) {
	rows, header, err := readTSV(r, "INTERACTOR_A")
	if err != nil {
		return nil, apperrors.Wrap(err, "reading BioGRID")
	}
	a, okA := header["INTERACTOR_A"]
	b, okB := header["INTERACTOR_B"]
	if !okA || !okB {
		return nil, apperrors.InvalidInput("BioGRID table has no INTERACTOR_A/INTERACTOR_B header")
	}
	out := make([]GenePair, 0, len(rows))
	for _, rec := range rows {
		if a >= len(rec) || b >= len(rec) {
			continue
		}
		out = append(out, GenePair{A: core.GeneID(rec[a]), B: core.GeneID(rec[b]), Score: 1})
	}
	return out, nil
}

// ReadPairs parses a generic "source target [score]" table, tab or space
// separated. Lines starting with # and a leading "source" header are skipped.
func ReadPairs(r io.Reader) ([]GenePair, error) {
	sc := bufio.NewScanner(r)
	var out []GenePair
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(out) == 0 && strings.EqualFold(fields[0], "source") {
			continue
		}
		if len(fields) < 2 {
			return nil, apperrors.InvalidInput("pair line %d: expected at least 2 fields", line)
		}
		p := GenePair{A: core.GeneID(fields[0]), B: core.GeneID(fields[1]), Score: 1}
		if len(fields) > 2 {
			s, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, apperrors.InvalidInput("pair line %d: bad score %q", line, fields[2])
			}
			p.Score = s
		}
		out = append(out, p)
	}
	if err := sc.Err(); err != nil {
		return nil, apperrors.Wrap(err, "reading pairs")
	}
	return out, nil
}

// readTSV returns the data rows and a header index. When marker is set,
// lines before the first one whose first field equals marker are skipped.
func readTSV(r io.Reader, marker string) ([][]string, map[string]int, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.Comment = '#'

	var header map[string]int
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if header == nil {
			if marker != "" && (len(rec) == 0 || strings.TrimSpace(rec[0]) != marker) {
				continue
			}
			header = make(map[string]int, len(rec))
			for i, h := range rec {
				header[strings.TrimSpace(h)] = i
			}
			continue
		}
		rows = append(rows, rec)
	}
	if header == nil {
		return nil, nil, apperrors.InvalidInput("no header line found")
	}
	return rows, header, nil
}
