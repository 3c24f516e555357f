package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/angelmondragon/settlement-engine/pkg/config"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	metadataTimeout = 10 * time.Second
	insertTimeout   = 30 * time.Second
)

var (
	ErrUnknownTable = errors.New("bigquery table was not verified at startup")

	errProjectIDRequired = errors.New("gcp project id is required")
	errDatasetRequired   = errors.New("bigquery dataset is required")
	errNoTables          = errors.New("at least one bigquery table is required")
	errNotInitialized    = errors.New("bigquery client not initialized")
)

// Client streams settlement analytics rows into a fixed dataset. Only tables
// checked during NewClient accept inserts.
type Client struct {
	client  *bigquery.Client
	dataset *bigquery.Dataset
	tables  map[string]struct{}
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}
	tables := configuredTables(cfg)
	if len(tables) == 0 {
		return nil, errNoTables
	}

	bq, err := bigquery.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}

	c := &Client{
		client:  bq,
		dataset: bq.Dataset(datasetID),
		tables:  make(map[string]struct{}, len(tables)),
	}
	for _, t := range tables {
		c.tables[t] = struct{}{}
	}

	if err := c.Ping(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"project": projectID,
			"dataset": datasetID,
			"tables":  tables,
		})
		logg.Info(ctx, "bigquery client ready")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

func configuredTables(cfg config.BigQueryConfig) []string {
	var tables []string
	if name := strings.TrimSpace(cfg.SettlementTable); name != "" {
		tables = append(tables, name)
	}
	return tables
}

// Tables lists the verified table names in sorted order.
func (c *Client) Tables() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ping confirms the dataset and every verified table still exist.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return describeMetadataErr("dataset", c.dataset.DatasetID, err)
	}
	for _, name := range c.Tables() {
		if _, err := c.dataset.Table(name).Metadata(ctx); err != nil {
			return describeMetadataErr("table", name, err)
		}
	}
	return nil
}

// InsertRows streams rows into one of the verified tables. Rows must be
// ValueSavers or structs with bigquery tags.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	if err := c.checkTable(table); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, insertTimeout)
	defer cancel()
	return c.dataset.Table(strings.TrimSpace(table)).Inserter().Put(ctx, rows)
}

func (c *Client) checkTable(table string) error {
	name := strings.TrimSpace(table)
	if _, ok := c.tables[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func describeMetadataErr(kind, name string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}
