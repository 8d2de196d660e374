// Package importer bulk-loads CSV dumps of the legacy hosted backend's
// customer and account tables. Rows go through the bank service so every
// carried-over balance is journaled against the cash account.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tellerline/teller/internal/bank"
	"github.com/tellerline/teller/internal/model"
)

// Row is one parsed record. Exactly one of Customer, Account or Err is set.
type Row struct {
	Line     int
	Customer *model.Customer
	Account  *bank.ImportAccountInput
	Err      error
}

// Parser converts a legacy CSV export into rows. It returns an error only
// when the file as a whole is unusable; bad rows carry their own Err.
type Parser interface {
	Parse(r io.Reader) ([]Row, error)
	Format() string
}

// Loader is the part of the bank service the importer writes through.
type Loader interface {
	ImportCustomer(ctx context.Context, actor bank.Actor, c model.Customer) (model.Customer, error)
	ImportAccount(ctx context.Context, actor bank.Actor, in bank.ImportAccountInput) (model.Account, error)
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
	order   []string
}

// FileInfo describes a CSV file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
	r.order = append(r.order, key)
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// Formats lists registered formats in registration order, which is also the
// order a directory import loads them in.
func (r *Registry) Formats() []string {
	return append([]string(nil), r.order...)
}

// ForFile picks the parser whose format prefixes the file name, so
// "customers-2025.csv" is read by the customers parser.
func (r *Registry) ForFile(name string) Parser {
	base := strings.ToLower(filepath.Base(name))
	for _, f := range r.order {
		if strings.HasPrefix(base, f) {
			return r.parsers[f]
		}
	}
	return nil
}

// DefaultRegistry returns a registry with all built-in parsers. Customers
// come first because accounts refer to them by email.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&CustomersParser{})
	r.Register(&AccountsParser{})
	return r
}

// RowError is a row that could not be imported.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e RowError) Unwrap() error { return e.Err }

// Summary reports the outcome of one file.
type Summary struct {
	Format   string
	Rows     int
	Imported int
	Errors   []RowError
}

// Err joins the row errors, or returns nil when every row was imported.
func (s Summary) Err() error {
	errs := make([]error, len(s.Errors))
	for i, e := range s.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Import parses r with p and loads each row through l as actor. Rows are
// independent: one failure does not stop the rest.
func Import(ctx context.Context, l Loader, actor bank.Actor, p Parser, r io.Reader) (Summary, error) {
	rows, err := p.Parse(r)
	if err != nil {
		return Summary{}, fmt.Errorf("parsing %s export: %w", p.Format(), err)
	}
	sum := Summary{Format: p.Format(), Rows: len(rows)}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		err := row.Err
		switch {
		case err != nil:
		case row.Customer != nil:
			_, err = l.ImportCustomer(ctx, actor, *row.Customer)
		case row.Account != nil:
			_, err = l.ImportAccount(ctx, actor, *row.Account)
		default:
			err = errors.New("empty row")
		}
		if err != nil {
			sum.Errors = append(sum.Errors, RowError{Line: row.Line, Err: err})
			continue
		}
		sum.Imported++
	}
	return sum, nil
}

// ImportFile opens path and imports it with the parser for format.
func ImportFile(ctx context.Context, reg *Registry, l Loader, actor bank.Actor, format, path string) (Summary, error) {
	p := reg.Get(format)
	if p == nil {
		return Summary{}, fmt.Errorf("unknown import format %q (have %s)", format, strings.Join(reg.Formats(), ", "))
	}
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return Import(ctx, l, actor, p, f)
}

// importDir is the subdirectory for import CSVs.
const importDir = "import"

// processedDir is the subdirectory for processed CSVs.
const processedDir = "import/processed"

// Scan returns CSV files in <root>/import/, sorted by name.
func Scan(root string) ([]FileInfo, error) {
	dir := filepath.Join(root, importDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(root, fileName string) error {
	src := filepath.Join(root, importDir, fileName)
	dstDir := filepath.Join(root, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}

// ImportDir loads every CSV under <root>/import/ whose name starts with a
// registered format, customers before accounts. Files that import cleanly
// are moved to import/processed/; files with row errors stay put so they
// can be fixed and rerun.
func ImportDir(ctx context.Context, reg *Registry, l Loader, actor bank.Actor, root string) ([]Summary, error) {
	files, err := Scan(root)
	if err != nil {
		return nil, err
	}
	var out []Summary
	for _, format := range reg.Formats() {
		for _, fi := range files {
			p := reg.ForFile(fi.Name)
			if p == nil || strings.ToLower(p.Format()) != format {
				continue
			}
			sum, err := ImportFile(ctx, reg, l, actor, format, fi.Path)
			if err != nil {
				return out, fmt.Errorf("%s: %w", fi.Name, err)
			}
			out = append(out, sum)
			if len(sum.Errors) == 0 {
				if err := MarkProcessed(root, fi.Name); err != nil {
					return out, err
				}
			}
		}
	}
	return out, nil
}
