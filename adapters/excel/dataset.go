package excel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gonomen/domain/core"
	"gonomen/domain/dataset"
	"gonomen/internal"
)

var extensions = []string{".xlsx", ".csv"}

// Dataset serves one domain per workbook or CSV file in a directory.
// Parsed domains are cached; files are not re-read after the first load.
type Dataset struct {
	config Config
	logger *internal.Logger

	mu    sync.Mutex
	cache map[core.DomainID][]dataset.Entity
}

// NewDataset creates a file-backed domain dataset
func NewDataset(config Config, logger *internal.Logger) (*Dataset, error) {
	info, err := os.Stat(config.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: data dir %s: %v", core.ErrDatasetUnavailable, config.Dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", core.ErrDatasetUnavailable, config.Dir)
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Dataset{
		config: config,
		logger: logger.With("ExcelDataset"),
		cache:  make(map[core.DomainID][]dataset.Entity),
	}, nil
}

// Domains lists the file stems in the directory, sorted.
func (d *Dataset) Domains(ctx context.Context) ([]core.DomainID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(d.config.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDatasetUnavailable, err)
	}
	seen := make(map[core.DomainID]bool)
	var out []core.DomainID
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".xlsx" && ext != ".csv" {
			continue
		}
		id, err := core.ParseDomainID(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Load returns at most limit entities of domain in file order.
func (d *Dataset) Load(ctx context.Context, domain core.DomainID, limit int) ([]dataset.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	entities, ok := d.cache[domain]
	d.mu.Unlock()

	if !ok {
		var err error
		entities, err = d.read(domain)
		if err != nil {
			return nil, err
		}
		d.mu.Lock()
		d.cache[domain] = entities
		d.mu.Unlock()
	}

	if limit < len(entities) {
		entities = entities[:limit]
	}
	out := make([]dataset.Entity, len(entities))
	copy(out, entities)
	return out, nil
}

func (d *Dataset) path(domain core.DomainID) (string, bool) {
	for _, ext := range extensions {
		p := filepath.Join(d.config.Dir, string(domain)+ext)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func (d *Dataset) read(domain core.DomainID) ([]dataset.Entity, error) {
	path, ok := d.path(domain)
	if !ok {
		return nil, fmt.Errorf("%w: no file for domain %s in %s", core.ErrDatasetUnavailable, domain, d.config.Dir)
	}
	data, err := NewDataReader(path, d.config.Sheet, d.logger).ReadData()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDatasetUnavailable, err)
	}

	nameCol, ok := DetectColumn(data, d.config.NameColumns)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no name column (tried %v)", core.ErrDatasetUnavailable, path, d.config.NameColumns)
	}
	outcomeCol, ok := DetectColumn(data, d.config.OutcomeColumns)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no outcome column (tried %v)", core.ErrDatasetUnavailable, path, d.config.OutcomeColumns)
	}
	successCol, hasSuccess := DetectColumn(data, d.config.SuccessColumns)

	entities := make([]dataset.Entity, 0, len(data.Rows))
	dropped := 0
	for _, row := range data.Rows {
		name := row[nameCol]
		outcome, err := strconv.ParseFloat(strings.ReplaceAll(row[outcomeCol], ",", ""), 64)
		if name == "" || err != nil {
			dropped++
			continue
		}
		e := dataset.Entity{Name: name, Outcome: outcome, Domain: domain}
		if hasSuccess {
			if v, err := strconv.ParseBool(strings.ToLower(row[successCol])); err == nil {
				e.Success = dataset.Label(v)
			}
		}
		entities = append(entities, e)
	}
	if d.config.NormalizeOutcomes {
		dataset.NormalizeOutcomes(entities)
	}
	if dropped > 0 {
		d.logger.Warn("domain %s: dropped %d rows without a name or numeric %s", domain, dropped, outcomeCol)
	}
	d.logger.Info("domain %s: loaded %d entities from %s", domain, len(entities), filepath.Base(path))
	return entities, nil
}
