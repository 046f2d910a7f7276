// Package dataset loads peptide-MHC binding measurements and prepares them
// for training: allele grouping, peptide index encoding, affinity
// transforms, and the split helpers the sweeps are built on.
package dataset

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/mhcsweep/mhcsweep/internal/ctxlog"
)

const (
	// PeptideLength is the only peptide length the predictors accept.
	PeptideLength = 9

	// Alphabet lists the 20 amino acid one-letter codes in index order.
	Alphabet = "ACDEFGHIKLMNPQRSTVWY"

	// NumSymbols is the size of the amino acid alphabet.
	NumSymbols = 20

	// StrongBindingThreshold is the IC50 (nM) below which a measurement is
	// considered a strong binder.
	StrongBindingThreshold = 500.0
)

var symbolIndex = func() map[byte]int {
	m := make(map[byte]int, NumSymbols)
	for i := 0; i < len(Alphabet); i++ {
		m[Alphabet[i]] = i
	}
	return m
}()

// AlleleData holds the encoded measurements for a single allele.
type AlleleData struct {
	Name     string
	Peptides []string

	// X is the n x PeptideLength matrix of per-position amino acid
	// indices, stored as floats so both network families accept it.
	X [][]float64

	// IC50 is the measured affinity in nM for each row of X.
	IC50 []float64
}

// Len returns the number of measurements for the allele.
func (a *AlleleData) Len() int { return len(a.IC50) }

// Targets returns the regression targets y = 1 - min(1, log(ic50)/log(maxIC50)).
func (a *AlleleData) Targets(maxIC50 float64) []float64 {
	y := make([]float64, len(a.IC50))
	for i, v := range a.IC50 {
		y[i] = TargetFromIC50(v, maxIC50)
	}
	return y
}

// Labels returns the strong-binder label for each measurement.
func (a *AlleleData) Labels() []bool {
	labels := make([]bool, len(a.IC50))
	for i, v := range a.IC50 {
		labels[i] = v <= StrongBindingThreshold
	}
	return labels
}

// Subset returns a new AlleleData restricted to the given row indices.
func (a *AlleleData) Subset(idx []int) *AlleleData {
	sub := &AlleleData{
		Name:     a.Name,
		Peptides: make([]string, len(idx)),
		X:        make([][]float64, len(idx)),
		IC50:     make([]float64, len(idx)),
	}
	for i, j := range idx {
		sub.Peptides[i] = a.Peptides[j]
		sub.X[i] = a.X[j]
		sub.IC50[i] = a.IC50[j]
	}
	return sub
}

// Dataset is a multi-allele collection of binding measurements.
type Dataset struct {
	byAllele map[string]*AlleleData
}

// Alleles returns the allele names in sorted order.
func (d *Dataset) Alleles() []string {
	names := make([]string, 0, len(d.byAllele))
	for name := range d.byAllele {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Allele returns the data for a single allele.
func (d *Dataset) Allele(name string) (*AlleleData, bool) {
	a, ok := d.byAllele[name]
	return a, ok
}

// Size returns the total number of measurements across all alleles.
func (d *Dataset) Size() int {
	n := 0
	for _, a := range d.byAllele {
		n += a.Len()
	}
	return n
}

// Load reads a binding dataset with columns mhc, peptide, peptide_length and
// meas. The delimiter (comma or tab) is sniffed from the header line; the
// reference bdata files are tab separated. Rows whose peptide length is not
// PeptideLength are dropped, rows with letters outside the amino acid
// alphabet or unusable allele names are skipped with a logged notice.
func Load(ctx context.Context, path string) (*Dataset, error) {
	logger := ctxlog.FromContext(ctx)

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening binding data %s", path)
	}
	defer f.Close()

	head := make([]byte, 4096)
	n, err := f.Read(head)
	if err != nil {
		return nil, errors.Wrapf(err, "reading header of %s", path)
	}
	comma := ','
	if line, _, _ := strings.Cut(string(head[:n]), "\n"); strings.ContainsRune(line, '\t') {
		comma = '\t'
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, errors.Wrapf(err, "rewinding %s", path)
	}

	r := csv.NewReader(f)
	r.Comma = comma
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, errors.Wrapf(err, "reading header of %s", path)
	}
	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"mhc", "peptide", "peptide_length", "meas"} {
		if _, ok := cols[required]; !ok {
			return nil, errors.Errorf("missing column %q in %s", required, path)
		}
	}

	ds := &Dataset{byAllele: map[string]*AlleleData{}}
	var skippedPeptides, skippedAlleles int
	for {
		record, err := r.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(err, "reading %s", path)
		}

		length, err := strconv.Atoi(strings.TrimSpace(record[cols["peptide_length"]]))
		if err != nil {
			return nil, errors.Wrapf(err, "bad peptide_length in %s", path)
		}
		if length != PeptideLength {
			continue
		}

		rawAllele := strings.TrimSpace(record[cols["mhc"]])
		if !usableAlleleName(rawAllele) {
			skippedAlleles++
			continue
		}
		allele := NormalizeAlleleName(rawAllele)

		peptide := strings.ToUpper(strings.TrimSpace(record[cols["peptide"]]))
		encoded, err := EncodePeptide(peptide)
		if err != nil {
			skippedPeptides++
			continue
		}

		meas, err := strconv.ParseFloat(strings.TrimSpace(record[cols["meas"]]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad meas value for peptide %s", peptide)
		}

		a := ds.byAllele[allele]
		if a == nil {
			a = &AlleleData{Name: allele}
			ds.byAllele[allele] = a
		}
		a.Peptides = append(a.Peptides, peptide)
		a.X = append(a.X, encoded)
		a.IC50 = append(a.IC50, meas)
	}

	if skippedPeptides > 0 {
		logger.Warn("Skipped peptides with non-standard amino acids.", "count", skippedPeptides)
	}
	if skippedAlleles > 0 {
		logger.Warn("Skipped rows with unusable allele names.", "count", skippedAlleles)
	}
	logger.Info("Binding data loaded.",
		"path", path, "alleles", len(ds.byAllele), "measurements", ds.Size())

	return ds, nil
}

// NormalizeAlleleName maps allele spellings such as "HLA-A*02:01" onto the
// compact four-digit form "A0201".
func NormalizeAlleleName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "HLA-")
	name = strings.Map(func(r rune) rune {
		switch r {
		case '*', ':', '-':
			return -1
		}
		return r
	}, name)
	return name
}

// usableAlleleName rejects names that are all digits or too short to carry
// a gene plus a four digit type, mirroring the skip rule of the sweep.
func usableAlleleName(name string) bool {
	if len(name) < 5 {
		return false
	}
	allDigits := true
	for _, r := range name {
		if r < '0' || r > '9' {
			allDigits = false
			break
		}
	}
	return !allDigits
}

// EncodePeptide converts a 9-mer into its per-position amino acid indices.
func EncodePeptide(peptide string) ([]float64, error) {
	if len(peptide) != PeptideLength {
		return nil, errors.Errorf("peptide %q has length %d, want %d", peptide, len(peptide), PeptideLength)
	}
	encoded := make([]float64, PeptideLength)
	for i := 0; i < PeptideLength; i++ {
		idx, ok := symbolIndex[peptide[i]]
		if !ok {
			return nil, errors.Errorf("peptide %q contains non-standard amino acid %q", peptide, string(peptide[i]))
		}
		encoded[i] = float64(idx)
	}
	return encoded, nil
}

// IndicesToHotshot expands an index matrix into its flattened one-hot
// ("hotshot") encoding with numSymbols indicator columns per position.
func IndicesToHotshot(X [][]float64, numSymbols int) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		hot := make([]float64, len(row)*numSymbols)
		for p, v := range row {
			hot[p*numSymbols+int(v)] = 1
		}
		out[i] = hot
	}
	return out
}

// TargetFromIC50 maps an IC50 measurement onto the [0, 1] regression target.
// Affinities are floored at 1 nM before the log transform.
func TargetFromIC50(ic50, maxIC50 float64) float64 {
	if ic50 < 1 {
		ic50 = 1
	}
	return 1 - math.Min(1, math.Log(ic50)/math.Log(maxIC50))
}

// IC50FromOutput inverts TargetFromIC50 for a network output in [0, 1].
func IC50FromOutput(output, maxIC50 float64) float64 {
	return math.Pow(maxIC50, 1-output)
}
