package model

// Chunk is a contiguous span of text cut from a scraped page. Chunks are
// immutable; the ranker consumes them and never stores them past the request.
type Chunk struct {
	Content   string
	Source    string
	Embedding []float32
}

// RankedChunk carries the rank (1 = most similar) and similarity score a
// chunk received against the query, for source-attribution display.
type RankedChunk struct {
	Chunk
	Rank  int
	Score float64
}

// Page is the extracted text of a single scraped URL.
type Page struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// QueryContext threads a query and its embedding through the semantic cache
// lookup and the chunk ranker so the query is embedded at most once per
// request.
type QueryContext struct {
	Text      string
	ModelName string
	Embedding []float32
}

type SourceDetail struct {
	Rank            int     `json:"rank"`
	SimilarityScore float64 `json:"similarity_score"`
	URL             string  `json:"url"`
	ContentPreview  string  `json:"content_preview"`
}

type AnswerMetadata struct {
	ChunksProcessed int    `json:"chunks_processed"`
	URLsScraped     int    `json:"urls_scraped"`
	TotalTimeMS     int64  `json:"total_time_ms"`
	TargetDomain    string `json:"target_domain"`
	Model           string `json:"model"`
	ChunkSize       int    `json:"chunk_size"`
	ChunkOverlap    int    `json:"chunk_overlap"`
	CacheTier       string `json:"cache_tier,omitempty"`
}

type Answer struct {
	Answer        string         `json:"answer"`
	Sources       []string       `json:"sources"`
	SourceDetails []SourceDetail `json:"source_details,omitempty"`
	Metadata      AnswerMetadata `json:"metadata"`
}

// CacheEntry is a row of the exact-match tier. Expired entries are treated
// as absent everywhere.
type CacheEntry struct {
	Key      string
	Payload  []byte
	HitCount int64
	Ctime    int64
	ExpireAt int64
}

// SemanticEntry is a row of the semantic response tier. Domain, MaxResults,
// MaxChunks and ModelName partition the candidate set; only entries matching
// all four exactly are eligible for a similarity match.
type SemanticEntry struct {
	ID         string
	Query      string
	ModelName  string
	Domain     string
	MaxResults int
	MaxChunks  int
	Embedding  []float32
	Payload    []byte
	HitCount   int64
	Ctime      int64
	LastHit    int64
	ExpireAt   int64
}

// EmbeddingCache is a row of the embedding tier, keyed by model, task type
// and content hash.
type EmbeddingCache struct {
	ModelName   string
	TaskType    string
	ContentHash string
	Embedding   []float32
	Ctime       int64
}
