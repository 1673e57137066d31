package postgres

const insertTaskSQL = `
INSERT INTO tasks (
  id, title, description, priority, status, created_at
) VALUES ($1,$2,$3,$4,$5,$6)
`

const getTaskSQL = `
SELECT id, title, description, priority, status,
       created_at, started_at, finished_at, result, error
FROM tasks WHERE id = $1
`

const updateTaskStatusSQL = `
UPDATE tasks SET
  status=$2, started_at=$3, finished_at=$4, result=$5, error=$6
WHERE id=$1
`

const cancelIfCancellableSQL = `
UPDATE tasks SET status = 'CANCELLED', finished_at = $2
WHERE id = $1 AND status IN ('NEW', 'PENDING')
`

const claimTaskSQL = `
UPDATE tasks SET status = 'IN_PROGRESS', started_at = $2
WHERE id = $1 AND status = 'PENDING'
`

const completeTaskSQL = `
UPDATE tasks SET status = 'COMPLETED', result = $2, error = NULL, finished_at = $3
WHERE id = $1 AND status = 'IN_PROGRESS'
`

const failTaskSQL = `
UPDATE tasks SET status = 'FAILED', error = $2, finished_at = $3
WHERE id = $1 AND status = 'IN_PROGRESS'
`
