package sqlinline

const eventColumns = `id, integration_id, payload, channel, request_ts, thread_ts, job_ref,
    submission_key, submission_started_at, held_at, coalesce(hold_reason, ''), created, processed_at`

const QInsertEvent = `--sql 8e23ceda-b9db-4d89-b47a-24f12b137ff9
insert into slack_event (integration_id, payload, channel, request_ts, thread_ts, created)
values ($1::bigint, $2::jsonb, $3::text, $4::text, nullif($5::text, ''), now())
on conflict (integration_id, channel, request_ts) do nothing
returning id, created;
`

const QSelectEvent = `--sql fd9a5280-5cae-43c5-a5ee-b4f8961bc935
select ` + eventColumns + `
from slack_event
where id = $1::bigint;
`

const QListUnprocessedEvents = `--sql c1883ae2-6191-4a0d-afea-3896e9671e6b
select ` + eventColumns + `
from slack_event
where processed_at is null
  and held_at is null
order by created asc, id asc
limit $1::int;
`

const QListHeldEvents = `--sql 6564a77d-198a-4190-8c35-64aec63927e6
select ` + eventColumns + `
from slack_event
where processed_at is null
  and held_at is not null
order by held_at asc, id asc
limit $1::int;
`

const QBeginSubmission = `--sql 49e42720-3f48-49aa-b2c5-b6693f4a0f00
update slack_event
set submission_key = $2::text,
    submission_started_at = coalesce(submission_started_at, now())
where id = $1::bigint
  and job_ref is null
  and processed_at is null
  and (submission_key is null or submission_key = $2::text);
`

const QAbortSubmission = `--sql bbfcdf33-b4db-48b6-bf7a-6979e890d2ba
update slack_event
set submission_key = null,
    submission_started_at = null
where id = $1::bigint
  and job_ref is null;
`

const QHoldEvent = `--sql bd048f65-c40c-4fbf-a31a-99c44830a338
update slack_event
set held_at = now(),
    hold_reason = $2::text
where id = $1::bigint
  and processed_at is null;
`

const QReleaseEvent = `--sql 1dcddfc5-3d75-4076-9b91-b4584ba8c7fc
update slack_event
set held_at = null,
    hold_reason = null
where id = $1::bigint
  and processed_at is null;
`

const QMarkEventProcessed = `--sql 647c0062-1a11-431b-a80a-4c118a0f134c
update slack_event
set processed_at = now()
where id = $1::bigint
  and processed_at is null;
`

const QClaimEventJobRef = `--sql 4f71f40a-a095-4b74-93c1-0457f0cbef11
update slack_event
set job_ref = $2::bigint
where id = $1::bigint
  and job_ref is null;
`
