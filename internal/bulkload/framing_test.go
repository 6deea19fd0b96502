// Copyright (c) 2025 pgload
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bulkload

import (
	"testing"

	"pgload/cli/internal/job"
)

func feedAll(f *framer, chunks ...string) []string {
	var out []string
	for _, c := range chunks {
		for _, rec := range f.feed([]byte(c)) {
			out = append(out, string(rec))
		}
	}
	return out
}

func TestFramerSplitsAcrossChunkBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		term     string
		chunks   []string
		want     []string
		wantTail string
	}{
		{
			name:   "single chunk, trailing terminator",
			term:   "\n",
			chunks: []string{"a,b\nc,d\n"},
			want:   []string{"a,b", "c,d"},
		},
		{
			name:     "record split across chunks",
			term:     "\n",
			chunks:   []string{"a,", "b\nc,", "d"},
			want:     []string{"a,b"},
			wantTail: "c,d",
		},
		{
			name:   "terminator split across chunks",
			term:   "\r\n",
			chunks: []string{"a,b\r", "\nc,d\r\n"},
			want:   []string{"a,b", "c,d"},
		},
		{
			name:   "empty records preserved",
			term:   "\n",
			chunks: []string{"\n\nx\n"},
			want:   []string{"", "", "x"},
		},
		{
			name:     "no terminator at all",
			term:     "\n",
			chunks:   []string{"only one record"},
			want:     nil,
			wantTail: "only one record",
		},
		{
			name:   "multi-byte custom terminator",
			term:   "|;",
			chunks: []string{"a|b|;c", "|;"},
			want:   []string{"a|b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFramer(tt.term)
			got := feedAll(f, tt.chunks...)
			if len(got) != len(tt.want) {
				t.Fatalf("records = %q, want %q", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("record[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
			tail, ok := f.tail()
			if tt.wantTail == "" {
				if ok {
					t.Errorf("tail = %q, want none", tail)
				}
			} else if !ok || string(tail) != tt.wantTail {
				t.Errorf("tail = %q (ok=%v), want %q", tail, ok, tt.wantTail)
			}
		})
	}
}

func TestFramerTailClearsBuffer(t *testing.T) {
	f := newFramer("\n")
	f.feed([]byte("partial"))
	if _, ok := f.tail(); !ok {
		t.Fatal("expected a tail record")
	}
	if _, ok := f.tail(); ok {
		t.Error("tail did not clear the buffer")
	}
}

func TestValidateRecord(t *testing.T) {
	d := job.DefaultDialect()
	tests := []struct {
		name       string
		rec        string
		wantFields int
		wantErr    bool
	}{
		{name: "plain fields", rec: "1,alice,2021-01-01", wantFields: 3},
		{name: "quoted field with delimiter", rec: `1,"smith, alice",x`, wantFields: 3},
		{name: "doubled quote inside quotes", rec: `1,"say ""hi""",x`, wantFields: 3},
		{name: "unterminated quote", rec: `1,"broken,x`, wantFields: 3, wantErr: true},
		{name: "too few fields", rec: "1,alice", wantFields: 3, wantErr: true},
		{name: "too many fields", rec: "1,2,3,4", wantFields: 3, wantErr: true},
		{name: "field count unchecked when unknown", rec: "1,2,3,4", wantFields: 0},
		{name: "empty record single column", rec: "", wantFields: 1},
		{name: "empty record multi column", rec: "", wantFields: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRecord([]byte(tt.rec), d, tt.wantFields)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateRecord(%q) error = %v, wantErr %v", tt.rec, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRecordCustomDialect(t *testing.T) {
	d := job.Dialect{Delimiter: '|', Quote: '\'', RecordTerminator: "\n"}
	if err := validateRecord([]byte("a|'b|c'|d"), d, 3); err != nil {
		t.Errorf("pipe-delimited record rejected: %v", err)
	}
	if err := validateRecord([]byte("a,b,c"), d, 3); err == nil {
		t.Error("comma record accepted by pipe dialect")
	}
}
