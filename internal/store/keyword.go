package store

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/shingle"
	bleveregexp "github.com/blevesearch/bleve/v2/analysis/tokenizer/regexp"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	// TermPattern matches word tokens of two or more characters.
	TermPattern = `[\p{L}\p{N}_]{2,}`

	// DefaultMaxVocabulary caps the number of distinct indexed terms.
	DefaultMaxVocabulary = 5000

	keywordTokenizerName = "docrag_terms"
	keywordBigramName    = "docrag_bigrams"
	keywordVocabName     = "docrag_vocab"
	keywordAnalyzerName  = "docrag_keyword"

	// VocabularyFilterType is the registry type of the vocabulary filter.
	VocabularyFilterType = "docrag_vocabulary"
)

var termRegexp = regexp.MustCompile(TermPattern)

func init() {
	_ = registry.RegisterTokenFilter(VocabularyFilterType, vocabularyFilterConstructor)
}

// KeywordIndex is a TF-IDF keyword index over unigrams and bigrams. The
// vocabulary is capped to the most frequent terms of the corpus, so the
// index is always rebuilt from the full chunk list.
type KeywordIndex struct {
	maxVocabulary int
	index         bleve.Index
	vocabulary    int
}

type keywordDocument struct {
	Content string `json:"content"`
}

// NewKeywordIndex returns an empty index.
func NewKeywordIndex(maxVocabulary int) *KeywordIndex {
	if maxVocabulary <= 0 {
		maxVocabulary = DefaultMaxVocabulary
	}
	return &KeywordIndex{maxVocabulary: maxVocabulary}
}

// Build replaces the index with one over texts; texts[i] gets chunk id i.
func (k *KeywordIndex) Build(ctx context.Context, texts []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(texts) == 0 {
		k.replace(nil, 0)
		return nil
	}
	vocab := buildVocabulary(texts, k.maxVocabulary)

	indexMapping, err := keywordMapping(vocab)
	if err != nil {
		return fmt.Errorf("failed to create keyword mapping: %w", err)
	}
	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return fmt.Errorf("failed to create keyword index: %w", err)
	}

	batch := idx.NewBatch()
	for i, text := range texts {
		if err := batch.Index(strconv.Itoa(i), keywordDocument{Content: text}); err != nil {
			_ = idx.Close()
			return fmt.Errorf("failed to index chunk %d: %w", i, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return fmt.Errorf("failed to commit keyword batch: %w", err)
	}

	k.replace(idx, len(vocab))
	return nil
}

func (k *KeywordIndex) replace(idx bleve.Index, vocabulary int) {
	if k.index != nil {
		_ = k.index.Close()
	}
	k.index = idx
	k.vocabulary = vocabulary
}

// VocabularySize returns the number of terms the index accepts.
func (k *KeywordIndex) VocabularySize() int {
	return k.vocabulary
}

// Count returns the number of indexed chunks.
func (k *KeywordIndex) Count() int {
	if k.index == nil {
		return 0
	}
	n, err := k.index.DocCount()
	if err != nil {
		return 0
	}
	return int(n)
}

// Search returns up to limit chunks ordered by descending score. Chunks with
// no matching term are not returned.
func (k *KeywordIndex) Search(ctx context.Context, query string, limit int) ([]KeywordResult, error) {
	if k.index == nil || limit <= 0 {
		return []KeywordResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("content")
	req := bleve.NewSearchRequest(matchQuery)
	req.Size = limit

	res, err := k.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	results := make([]KeywordResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if hit.Score <= 0 {
			continue
		}
		id, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		results = append(results, KeywordResult{ChunkID: id, Score: hit.Score})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	return results, nil
}

// Close releases the underlying index.
func (k *KeywordIndex) Close() error {
	if k.index == nil {
		return nil
	}
	err := k.index.Close()
	k.index = nil
	return err
}

func keywordMapping(vocab []string) (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	if err := indexMapping.AddCustomTokenizer(keywordTokenizerName, map[string]interface{}{
		"type":   bleveregexp.Name,
		"regexp": TermPattern,
	}); err != nil {
		return nil, err
	}
	if err := indexMapping.AddCustomTokenFilter(keywordBigramName, map[string]interface{}{
		"type":            shingle.Name,
		"min":             2.0,
		"max":             2.0,
		"output_original": true,
		"separator":       " ",
	}); err != nil {
		return nil, err
	}
	if err := indexMapping.AddCustomTokenFilter(keywordVocabName, map[string]interface{}{
		"type":  VocabularyFilterType,
		"terms": vocab,
	}); err != nil {
		return nil, err
	}
	if err := indexMapping.AddCustomAnalyzer(keywordAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": keywordTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			keywordBigramName,
			keywordVocabName,
		},
	}); err != nil {
		return nil, err
	}

	indexMapping.DefaultAnalyzer = keywordAnalyzerName
	return indexMapping, nil
}

// buildVocabulary returns the max most frequent unigrams and bigrams across
// texts, ties broken lexically.
func buildVocabulary(texts []string, max int) []string {
	tokenizer := bleveregexp.NewRegexpTokenizer(termRegexp)
	filters := []analysis.TokenFilter{
		lowercase.NewLowerCaseFilter(),
		shingle.NewShingleFilter(2, 2, true, " ", "_"),
	}

	counts := make(map[string]int)
	for _, text := range texts {
		stream := tokenizer.Tokenize([]byte(text))
		for _, f := range filters {
			stream = f.Filter(stream)
		}
		for _, tok := range stream {
			counts[string(tok.Term)]++
		}
	}

	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > max {
		terms = terms[:max]
	}
	return terms
}

func vocabularyFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	allowed := make(map[string]struct{})
	switch terms := config["terms"].(type) {
	case []string:
		for _, t := range terms {
			allowed[t] = struct{}{}
		}
	case []interface{}:
		for _, t := range terms {
			if s, ok := t.(string); ok {
				allowed[s] = struct{}{}
			}
		}
	default:
		return nil, fmt.Errorf("vocabulary filter requires a terms list")
	}
	return &vocabularyFilter{allowed: allowed}, nil
}

// vocabularyFilter drops tokens outside a fixed term set.
type vocabularyFilter struct {
	allowed map[string]struct{}
}

// Filter implements analysis.TokenFilter.
func (f *vocabularyFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, tok := range input {
		if _, ok := f.allowed[string(tok.Term)]; ok {
			result = append(result, tok)
		}
	}
	return result
}
