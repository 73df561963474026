// Package dataset loads the phrase sentiment TSV files and encodes phrases
// as fixed-length index sequences.
package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
)

// NumClasses is the number of sentiment labels (0 negative .. 4 positive)
const NumClasses = 5

// Record is one row of train.tsv or test.tsv
type Record struct {
	PhraseID   int    `csv:"PhraseId"`
	SentenceID int    `csv:"SentenceId"`
	Phrase     string `csv:"Phrase"`
	Sentiment  int    `csv:"Sentiment"`
}

// Phrase is an ordered sequence of lowercase tokens
type Phrase []string

// Tokenize lowercases text and splits it on single spaces. Consecutive
// spaces yield empty tokens, which are kept.
func Tokenize(text string) Phrase {
	return Phrase(strings.Split(strings.ToLower(text), " "))
}

// Load reads a tab-separated file with a header row. When labelled is true
// the Sentiment column is required and every label must be in [0, NumClasses).
func Load(path string, labelled bool) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	records, err := Read(f, labelled)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return records, nil
}

// Read decodes records from r. See Load.
func Read(r io.Reader, labelled bool) ([]Record, error) {
	required := []string{"PhraseId", "SentenceId", "Phrase"}
	if labelled {
		required = append(required, "Sentiment")
	}

	var records []Record
	if err := gocsv.UnmarshalCSV(newTSVReader(r, required), &records); err != nil {
		return nil, err
	}

	if labelled {
		for i, rec := range records {
			if rec.Sentiment < 0 || rec.Sentiment >= NumClasses {
				return nil, errors.Errorf("row %d (PhraseId %d): sentiment %d outside [0, %d)", i+2, rec.PhraseID, rec.Sentiment, NumClasses)
			}
		}
	}
	return records, nil
}

// tsvReader adapts encoding/csv to tab-separated input and rejects files
// whose header lacks a required column.
type tsvReader struct {
	*csv.Reader
	required   []string
	headerSeen bool
}

func newTSVReader(r io.Reader, required []string) *tsvReader {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	return &tsvReader{Reader: cr, required: required}
}

func (t *tsvReader) checkHeader(header []string) error {
	t.headerSeen = true
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[strings.TrimSpace(h)] = true
	}
	for _, col := range t.required {
		if !have[col] {
			return errors.Errorf("missing column %q in header %v", col, header)
		}
	}
	return nil
}

// Read returns the next record, validating the header on the first call
func (t *tsvReader) Read() ([]string, error) {
	rec, err := t.Reader.Read()
	if err != nil {
		return nil, err
	}
	if !t.headerSeen {
		if err := t.checkHeader(rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// ReadAll returns every remaining record, validating the header first
func (t *tsvReader) ReadAll() ([][]string, error) {
	rows, err := t.Reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if !t.headerSeen {
		if len(rows) == 0 {
			return nil, errors.New("empty file")
		}
		if err := t.checkHeader(rows[0]); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// Corpus holds the tokenized train and test phrases
type Corpus struct {
	Train  []Phrase
	Test   []Phrase
	Labels []int
}

// NewCorpus tokenizes train and test records
func NewCorpus(train, test []Record) *Corpus {
	c := &Corpus{
		Train:  make([]Phrase, len(train)),
		Test:   make([]Phrase, len(test)),
		Labels: make([]int, len(train)),
	}
	for i, rec := range train {
		c.Train[i] = Tokenize(rec.Phrase)
		c.Labels[i] = rec.Sentiment
	}
	for i, rec := range test {
		c.Test[i] = Tokenize(rec.Phrase)
	}
	return c
}

// All returns train phrases followed by test phrases
func (c *Corpus) All() []Phrase {
	all := make([]Phrase, 0, len(c.Train)+len(c.Test))
	all = append(all, c.Train...)
	return append(all, c.Test...)
}

// Sentences returns All as plain string slices
func (c *Corpus) Sentences() [][]string {
	all := c.All()
	out := make([][]string, len(all))
	for i, p := range all {
		out[i] = p
	}
	return out
}

// MaxLen is the longest phrase over both train and test sets. Test phrases
// are never encoded but still set the padded length.
func (c *Corpus) MaxLen() int {
	max := 0
	for _, set := range [][]Phrase{c.Train, c.Test} {
		for _, p := range set {
			if len(p) > max {
				max = len(p)
			}
		}
	}
	return max
}
