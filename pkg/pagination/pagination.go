package pagination

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any list query can request.
	MaxLimit = 100
)

// Page holds offset pagination inputs from controllers or services.
type Page struct {
	Number int
	Size   int
}

// NewPage normalizes raw query inputs into a usable page.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	return Page{Number: number, Size: NormalizeLimit(size)}
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Offset converts the page number into a row offset.
func (p Page) Offset() int {
	number := p.Number
	if number < 1 {
		number = 1
	}
	return (number - 1) * p.Limit()
}

// Limit returns the normalized page size.
func (p Page) Limit() int {
	return NormalizeLimit(p.Size)
}

// Meta describes a page of results for response envelopes.
type Meta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalCount int64 `json:"total_count"`
}

// MetaFor builds response metadata for a completed list query.
func MetaFor(page Page, total int64) Meta {
	return Meta{
		Page:       maxInt(page.Number, 1),
		PageSize:   page.Limit(),
		TotalCount: total,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
