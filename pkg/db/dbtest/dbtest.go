// Package dbtest 提供不连接数据库的 GORM DryRun 实例，用于断言仓储生成的 SQL
package dbtest

import (
	"sync"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// dryRunDSN 只用于解析连接配置，DryRun 模式下不会建立连接
const dryRunDSN = "host=localhost user=tradingassistant dbname=tradingassistant sslmode=disable"

// Statement 一条生成的 SQL 语句
type Statement struct {
	SQL  string
	Vars []any
}

// Recorder 按执行顺序记录语句
type Recorder struct {
	mu         sync.Mutex
	statements []Statement
}

func (r *Recorder) record(tx *gorm.DB) {
	vars := make([]any, len(tx.Statement.Vars))
	copy(vars, tx.Statement.Vars)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.statements = append(r.statements, Statement{SQL: tx.Statement.SQL.String(), Vars: vars})
}

// Statements 返回已记录语句的副本
func (r *Recorder) Statements() []Statement {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Statement, len(r.statements))
	copy(out, r.statements)
	return out
}

// Last 返回最后一条语句，没有记录时测试失败
func (r *Recorder) Last(t testing.TB) Statement {
	t.Helper()
	statements := r.Statements()
	if len(statements) == 0 {
		t.Fatalf("no SQL statement recorded")
	}
	return statements[len(statements)-1]
}

// Reset 清空记录
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statements = nil
}

// NewPostgres 创建 postgres 方言的 DryRun 实例
func NewPostgres(t testing.TB) (*gorm.DB, *Recorder) {
	t.Helper()
	gdb, err := gorm.Open(postgres.New(postgres.Config{DSN: dryRunDSN}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Discard,
	})
	if err != nil {
		t.Fatalf("open dry-run gorm: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	rec := &Recorder{}
	cb := gdb.Callback()
	for _, err := range []error{
		cb.Create().After("gorm:create").Register("dbtest:record", rec.record),
		cb.Query().After("gorm:query").Register("dbtest:record", rec.record),
		cb.Update().After("gorm:update").Register("dbtest:record", rec.record),
		cb.Delete().After("gorm:delete").Register("dbtest:record", rec.record),
	} {
		if err != nil {
			t.Fatalf("register recorder: %v", err)
		}
	}
	return gdb, rec
}
