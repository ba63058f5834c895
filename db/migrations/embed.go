// db/migrations/embed.go

package migrations

import "embed"

//go:embed 000001_automation_schema.up.sql
var AutomationSchemaUp string

// Task and tag targets for the built-in action handlers
//go:embed 000002_task_schema.up.sql
var TaskSchemaUp string

// SQLFiles holds every up/down pair in golang-migrate naming.
//go:embed *.sql
var SQLFiles embed.FS
