package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/commerce-core/pkg/config"
	"github.com/angelmondragon/commerce-core/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errDatasetRequired   = errors.New("bigquery dataset is required")
	errTableRequired     = errors.New("bigquery table name is required")
	errNotInitialized    = errors.New("bigquery client not initialized")
)

// Table describes a table the caller writes to. Schema is optional; without
// it the table is only checked for existence.
type Table struct {
	Name           string
	Schema         bigquery.Schema
	PartitionField string
}

// Client owns one dataset. Tables it was built with are verified at startup
// and, when COMMERCE_BIGQUERY_CREATE_TABLES is set, created if missing.
type Client struct {
	bq      *bigquery.Client
	dataset *bigquery.Dataset
	tables  map[string]Table
	events  string
	logg    *logger.Logger
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger, tables ...Table) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}
	byName, err := indexTables(tables)
	if err != nil {
		return nil, err
	}

	bq, err := bigquery.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}
	c := &Client{
		bq:      bq,
		dataset: bq.Dataset(datasetID),
		tables:  byName,
		events:  strings.TrimSpace(cfg.CommerceEventsTable),
		logg:    logg,
	}
	if err := c.prepare(ctx, cfg.CreateTables); err != nil {
		_ = bq.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project": projectID,
			"dataset": datasetID,
			"tables":  len(byName),
		}), "bigquery client initialized")
	}
	return c, nil
}

func indexTables(tables []Table) (map[string]Table, error) {
	out := make(map[string]Table, len(tables))
	for _, t := range tables {
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			return nil, errTableRequired
		}
		if _, dup := out[t.Name]; dup {
			return nil, fmt.Errorf("bigquery table %q declared twice", t.Name)
		}
		out[t.Name] = t
	}
	return out, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

func (c *Client) prepare(ctx context.Context, create bool) error {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("dataset %q does not exist", c.dataset.DatasetID)
		}
		return fmt.Errorf("read dataset %q: %w", c.dataset.DatasetID, err)
	}

	for name, table := range c.tables {
		meta, err := c.dataset.Table(name).Metadata(ctx)
		switch {
		case err == nil:
			if missing := missingColumns(table.Schema, meta.Schema); len(missing) > 0 {
				return fmt.Errorf("table %q is missing columns %s", name, strings.Join(missing, ", "))
			}
		case isNotFound(err) && create && table.Schema != nil:
			if err := c.dataset.Table(name).Create(ctx, tableMetadata(table)); err != nil {
				return fmt.Errorf("create table %q: %w", name, err)
			}
			if c.logg != nil {
				c.logg.Info(c.logg.WithField(ctx, "table", name), "bigquery table created")
			}
		case isNotFound(err):
			return fmt.Errorf("table %q does not exist", name)
		default:
			return fmt.Errorf("read table %q: %w", name, err)
		}
	}
	return nil
}

func tableMetadata(table Table) *bigquery.TableMetadata {
	meta := &bigquery.TableMetadata{Schema: table.Schema}
	if table.PartitionField != "" {
		meta.TimePartitioning = &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: table.PartitionField,
		}
	}
	return meta
}

// missingColumns lists top-level columns in want that have lacks. Extra
// columns in have are fine; the table may be ahead of this binary.
func missingColumns(want, have bigquery.Schema) []string {
	present := make(map[string]struct{}, len(have))
	for _, f := range have {
		present[strings.ToLower(f.Name)] = struct{}{}
	}
	var missing []string
	for _, f := range want {
		if _, ok := present[strings.ToLower(f.Name)]; !ok {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// Ping checks the dataset is still readable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	_, err := c.dataset.Metadata(ctx)
	return err
}

// InsertRows streams rows into table. Rows must be ValueSavers or structs
// with bigquery tags.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableRequired
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, rows)
}

func (c *Client) EventsTable() string {
	if c == nil {
		return ""
	}
	return c.events
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
