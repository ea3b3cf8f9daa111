package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docrag/internal/store"
)

func TestClassifier_Kinds(t *testing.T) {
	known := []string{"budi_santoso.pdf", "siti.pdf"}
	c := NewClassifier(nil)

	tests := []struct {
		question string
		kind     QuestionKind
		section  int
		doc      string
	}{
		{"Rangkum dokumen Budi_Santoso", QuestionSummary, 0, "budi_santoso.pdf"},
		{"Give me a summary of siti.pdf", QuestionSummary, 0, "siti.pdf"},
		{"Kapan perjanjian siti ditandatangani?", QuestionDate, 0, "siti.pdf"},
		{"Berapa luas lahan milik budi_santoso", QuestionLocation, 0, "budi_santoso.pdf"},
		{"Berapa luas area rambah budi_santoso", QuestionEncroachment, 0, "budi_santoso.pdf"},
		{"Luas lahan rambah siti berapa?", QuestionEncroachment, 0, "siti.pdf"},
		{"How large is the encroached area in siti.pdf?", QuestionEncroachment, 0, "siti.pdf"},
		{"Berapa luas tanah yang dirambah siti", QuestionFree, 0, "siti.pdf"},
		{"Jelaskan PASAL 4 untuk siti", QuestionSection, 4, "siti.pdf"},
		{"What does Article 12 say?", QuestionSection, 12, ""},
		{"Siapa pihak pertama?", QuestionFree, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			q := c.Classify(tt.question, known)
			assert.Equal(t, tt.kind, q.Kind)
			assert.Equal(t, tt.section, q.Section)
			assert.Equal(t, tt.doc, q.DocumentID)
			assert.Equal(t, tt.question, q.Text)
		})
	}
}

func TestNameDetector_LongestMatchWins(t *testing.T) {
	d := NameDetector{}
	got := d.Detect("summary of lease-2024-final please", []string{"lease", "lease-2024-final.txt", "other"})
	assert.Equal(t, "lease-2024-final.txt", got)
	assert.Equal(t, "", d.Detect("nothing here", []string{"lease"}))
}

func TestNameDetector_MatchesWholeWordsOnly(t *testing.T) {
	d := NameDetector{}
	known := []string{"act.txt", "report.pdf", "a.pdf", "b.pdf", "budi_santoso.pdf"}

	tests := []struct {
		question string
		want     string
	}{
		{"when was the contract signed?", ""},
		{"give me a summary", ""},
		{"summarize a.pdf", "a.pdf"},
		{"what does the act say?", "act.txt"},
		{"what does act.txt say?", "act.txt"},
		{"is the reporter named?", ""},
		{"Summarize REPORT.", "report.pdf"},
		{"rangkum budi_santoso", "budi_santoso.pdf"},
		{"compare a.pdf with b.pdf", "a.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			// Given: known ids including short and embedded names
			// When: detecting the document a question names
			got := d.Detect(tt.question, known)
			// Then: only whole-word mentions count
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNameDetector_FuzzyFallback(t *testing.T) {
	d := NameDetector{}
	known := []string{"budi_santoso.pdf", "siti.pdf", "lease.txt"}

	tests := []struct {
		name     string
		question string
		want     string
	}{
		{"misspelt owner", "rangkum dokumen budi_santosa", "budi_santoso.pdf"},
		{"extra letter", "ringkasan sitti", "siti.pdf"},
		{"trailing period", "summarize the leese.", "lease.txt"},
		{"exact match wins over a closer typo", "compare siti with budi_santosa", "siti.pdf"},
		{"nothing close", "what is the deposit?", ""},
		{"short words never match", "is it due?", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: no id occurs as a whole word
			// When: detecting
			got := d.Detect(tt.question, known)
			// Then: the closest id within the edit budget is chosen
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEditDistance(t *testing.T) {
	assert.Equal(t, 0, editDistance("siti", "siti"))
	assert.Equal(t, 1, editDistance("sitti", "siti"))
	assert.Equal(t, 3, editDistance("kitten", "sitting"))
	assert.Equal(t, 4, editDistance("", "lima"))
	assert.Equal(t, 1, editDistance("pasál", "pasal"))
}

func TestQuestionKind_String(t *testing.T) {
	assert.Equal(t, "section", QuestionSection.String())
	assert.Equal(t, "encroachment", QuestionEncroachment.String())
	assert.Equal(t, "QuestionKind(42)", QuestionKind(42).String())
}

func TestSelectChunks(t *testing.T) {
	chunks := []store.Chunk{
		{ID: 10, Kind: store.KindGeneral, Text: "Pada hari ini"},
		{ID: 11, Kind: store.KindDateContext, Text: "08/08/2024"},
		{ID: 12, Kind: store.KindSection, SectionNumber: store.SectionNumber(1)},
		{ID: 13, Kind: store.KindSection, SectionNumber: store.SectionNumber(2)},
		{ID: 14, Kind: store.KindSection, SectionNumber: store.SectionNumber(2)},
	}

	assert.Equal(t, []int{11}, chunkIDs(SelectChunks(Question{Kind: QuestionDate}, chunks, 10)))
	assert.Equal(t, []int{11}, chunkIDs(SelectChunks(Question{Kind: QuestionLocation}, chunks, 10)))
	assert.Equal(t, []int{13, 14}, chunkIDs(SelectChunks(Question{Kind: QuestionSection, Section: 2}, chunks, 10)))
	assert.Empty(t, SelectChunks(Question{Kind: QuestionSection, Section: 9}, chunks, 10))
	assert.Len(t, SelectChunks(Question{Kind: QuestionSummary}, chunks, 10), 5)
	assert.Nil(t, SelectChunks(Question{Kind: QuestionFree}, chunks, 10))

	// Without a date chunk the opening chunk is used.
	require.Len(t, SelectChunks(Question{Kind: QuestionDate}, chunks[2:], 10), 1)
	assert.Equal(t, 12, SelectChunks(Question{Kind: QuestionDate}, chunks[2:], 10)[0].ID)
	assert.Equal(t, []int{12}, chunkIDs(SelectChunks(Question{Kind: QuestionLocation}, chunks[2:3], 10)))
	assert.Equal(t, []int{11}, chunkIDs(SelectChunks(Question{Kind: QuestionEncroachment}, chunks, 10)))
}

func TestRetrieval_Texts(t *testing.T) {
	r := &Retrieval{Chunks: []store.Chunk{{Text: "a"}, {Text: "b"}}}
	assert.Equal(t, []string{"a", "b"}, r.Texts())
}
