package dependency

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hbctl/hbctl/internal/apperrors"
)

// PostgresLookup reads dependent clusters from a fleet inventory database.
//
// Expected tables:
//
//	inventory_clusters(service, name, version, enable_security, kerberos_realm)
//	inventory_jobs(service, cluster, job, base_port)
//	inventory_tasks(service, cluster, job, task_id, host, position)
type PostgresLookup struct {
	connStr string
	pool    *pgxpool.Pool
}

// NewPostgresLookup creates a lookup for the given connection string.
func NewPostgresLookup(connStr string) *PostgresLookup {
	return &PostgresLookup{connStr: connStr}
}

// Connect opens a small read-only pool.
func (l *PostgresLookup) Connect(ctx context.Context) error {
	cfg, err := pgxpool.ParseConfig(l.connStr)
	if err != nil {
		return fmt.Errorf("parsing inventory connection string: %w", err)
	}
	cfg.MaxConns = 2
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to inventory: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("pinging inventory: %w", err)
	}
	l.pool = pool
	return nil
}

// Close releases the pool.
func (l *PostgresLookup) Close() {
	if l.pool != nil {
		l.pool.Close()
	}
}

type inventoryCluster struct {
	version        string
	enableSecurity bool
	realm          string
	basePort       int
	tasks          []Endpoint
}

func (l *PostgresLookup) load(ctx context.Context, service, name, job string) (*inventoryCluster, error) {
	if l.pool == nil {
		return nil, fmt.Errorf("inventory is not connected")
	}

	c := &inventoryCluster{}
	err := l.pool.QueryRow(ctx, `
		SELECT c.version, c.enable_security, COALESCE(c.kerberos_realm, ''), j.base_port
		FROM inventory_clusters c
		JOIN inventory_jobs j ON j.service = c.service AND j.cluster = c.name
		WHERE c.service = $1 AND c.name = $2 AND j.job = $3`,
		service, name, job,
	).Scan(&c.version, &c.enableSecurity, &c.realm, &c.basePort)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.Dependency(service, fmt.Sprintf("cluster %s with job %s is not in the inventory", name, job))
	}
	if err != nil {
		return nil, fmt.Errorf("querying inventory for %s/%s: %w", service, name, err)
	}

	rows, err := l.pool.Query(ctx, `
		SELECT task_id, host FROM inventory_tasks
		WHERE service = $1 AND cluster = $2 AND job = $3
		ORDER BY position, task_id`,
		service, name, job,
	)
	if err != nil {
		return nil, fmt.Errorf("querying inventory tasks for %s/%s: %w", service, name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var e Endpoint
		if err := rows.Scan(&e.ID, &e.Host); err != nil {
			return nil, fmt.Errorf("scanning inventory task: %w", err)
		}
		e.RPCPort = c.basePort
		e.HTTPPort = c.basePort + 1
		c.tasks = append(c.tasks, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading inventory tasks: %w", err)
	}
	if len(c.tasks) == 0 {
		return nil, apperrors.Dependency(service, fmt.Sprintf("cluster %s has no %s hosts in the inventory", name, job))
	}
	return c, nil
}

// Quorum returns the ZooKeeper ensemble recorded in the inventory.
func (l *PostgresLookup) Quorum(ctx context.Context, name string) (*Quorum, error) {
	c, err := l.load(ctx, zookeeperService, name, zookeeperJob)
	if err != nil {
		return nil, err
	}
	q := &Quorum{Cluster: name, ClientPort: c.basePort}
	for _, t := range c.tasks {
		q.Hosts = append(q.Hosts, t.Host)
	}
	return q, nil
}

// Filesystem returns the HDFS namenodes recorded in the inventory.
func (l *PostgresLookup) Filesystem(ctx context.Context, name string) (*Filesystem, error) {
	c, err := l.load(ctx, hdfsService, name, namenodeJob)
	if err != nil {
		return nil, err
	}
	return &Filesystem{
		Name:           name,
		Version:        c.version,
		EnableSecurity: c.enableSecurity,
		KerberosRealm:  c.realm,
		NameNodes:      c.tasks,
	}, nil
}
