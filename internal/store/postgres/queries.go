package postgres

const jobColumns = `
    id, public_id, owner_id, format, fields, filter_spec, sort_spec,
    related_inclusion, status, schedule_id, template_id,
    artifact_path, artifact_bytes, error_code, error_message,
    total_records, duration_ms, retries,
    created_at, started_at, completed_at, last_downloaded_at`

const queryInsertJob = `
INSERT INTO jobs (
    id, public_id, owner_id, format, fields, filter_spec, sort_spec,
    related_inclusion, status, schedule_id, template_id,
    total_records, duration_ms, retries, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, 0, 0, $12)
`

const queryGetJob = `
SELECT` + jobColumns + `
FROM jobs
WHERE id = $1
`

const queryGetJobByPublicID = `
SELECT` + jobColumns + `
FROM jobs
WHERE public_id = $1
`

const queryListOneOffJobs = `
SELECT` + jobColumns + `
FROM jobs
WHERE owner_id = $1 AND schedule_id IS NULL
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

const queryListScheduleJobs = `
SELECT` + jobColumns + `
FROM jobs
WHERE schedule_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

const queryGetTerminalJobs = `
SELECT` + jobColumns + `
FROM jobs
WHERE schedule_id = $1
  AND status IN ('completed', 'failed', 'cancelled')
ORDER BY completed_at DESC NULLS LAST
`

const queryMarkProcessing = `
UPDATE jobs
SET status = 'processing', started_at = $2
WHERE id = $1
  AND status = 'pending'
`

const queryCompleteJob = `
UPDATE jobs
SET status = 'completed',
    artifact_path = $2,
    artifact_bytes = $3,
    total_records = $4,
    duration_ms = $5,
    completed_at = $6
WHERE id = $1
  AND status = 'processing'
`

const queryFailJob = `
UPDATE jobs
SET status = 'failed',
    error_code = $2,
    error_message = $3,
    total_records = $4,
    retries = retries + 1,
    completed_at = $5
WHERE id = $1
  AND status = 'processing'
`

const queryCancelJob = `
UPDATE jobs
SET status = 'cancelled', completed_at = $2
WHERE id = $1
  AND status IN ('pending', 'processing')
`

const queryGetJobStatus = `
SELECT status FROM jobs WHERE id = $1
`

const queryDeleteJob = `
DELETE FROM jobs WHERE id = $1
RETURNING id
`

const queryTouchDownload = `
UPDATE jobs
SET last_downloaded_at = $2
WHERE id = $1
  AND status = 'completed'
  AND (last_downloaded_at IS NULL OR last_downloaded_at < $2)
`

const queryGetOrphanedPendingJobs = `
SELECT` + jobColumns + `
FROM jobs
WHERE status = 'pending'
  AND created_at < $1
ORDER BY created_at ASC
LIMIT $2
`

const queryGetStuckProcessingJobs = `
SELECT` + jobColumns + `
FROM jobs
WHERE status = 'processing'
  AND started_at < $1
ORDER BY started_at ASC
LIMIT $2
`

const scheduleColumns = `
    id, owner_id, name, description, format, fields, filter_spec, sort_spec,
    related_inclusion, frequency, custom_expr, keep_count, keep_days,
    template_id, is_active, next_run_at, last_run_at,
    run_count, success_count, failure_count, last_error,
    created_at, updated_at`

const queryInsertSchedule = `
INSERT INTO schedules (
    id, owner_id, name, description, format, fields, filter_spec, sort_spec,
    related_inclusion, frequency, custom_expr, keep_count, keep_days,
    template_id, is_active, next_run_at,
    run_count, success_count, failure_count, last_error,
    created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 0, 0, 0, '', $17, $17)
`

const queryGetSchedule = `
SELECT` + scheduleColumns + `
FROM schedules
WHERE id = $1
`

const queryListSchedules = `
SELECT` + scheduleColumns + `
FROM schedules
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

const queryGetDueSchedules = `
SELECT` + scheduleColumns + `
FROM schedules
WHERE is_active = true
  AND next_run_at <= $1
ORDER BY next_run_at ASC
LIMIT $2
`

const queryClaimSchedule = `
UPDATE schedules
SET next_run_at = $3
WHERE id = $1
  AND next_run_at = $2
`

const queryReleaseSchedule = `
UPDATE schedules
SET next_run_at = $2
WHERE id = $1
`

const queryRecordScheduleRun = `
UPDATE schedules
SET run_count = run_count + 1,
    success_count = success_count + CASE WHEN $2 THEN 1 ELSE 0 END,
    failure_count = failure_count + CASE WHEN $2 THEN 0 ELSE 1 END,
    last_error = $3,
    last_run_at = $4,
    next_run_at = $5,
    updated_at = $4
WHERE id = $1
`

const querySetScheduleActive = `
UPDATE schedules
SET is_active = $2,
    next_run_at = COALESCE($3, next_run_at),
    updated_at = $4
WHERE id = $1
RETURNING id
`

const queryDeleteSchedule = `
DELETE FROM schedules WHERE id = $1
RETURNING id
`

const queryListRetentionSchedules = `
SELECT` + scheduleColumns + `
FROM schedules
WHERE keep_count >= 1 AND keep_days >= 1
ORDER BY id
LIMIT $1
`

const templateColumns = `
    id, owner_id, name, format, fields, filter_spec, sort_spec,
    is_default, is_public, usage_count, created_at, updated_at`

const queryInsertTemplate = `
INSERT INTO templates (
    id, owner_id, name, format, fields, filter_spec, sort_spec,
    is_default, is_public, usage_count, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $10)
`

const queryClearDefaultTemplates = `
UPDATE templates
SET is_default = false, updated_at = $2
WHERE owner_id = $1
  AND is_default = true
`

const queryGetTemplate = `
SELECT` + templateColumns + `
FROM templates
WHERE id = $1
`

const queryListTemplates = `
SELECT` + templateColumns + `
FROM templates
WHERE owner_id = $1 OR is_public = true
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

const queryDeleteTemplate = `
DELETE FROM templates WHERE id = $1
RETURNING id
`

const queryIncrementTemplateUsage = `
UPDATE templates
SET usage_count = usage_count + 1
WHERE id = $1
`
