package sqlinline

const jobColumns = `id, slack_event_id, model_vendor, job_id, token, prompt, seed, status, credits,
    queue_position, queue_length, created, updated`

const QInsertJob = `--sql 66e2316d-e571-4ea8-9201-7022605a5189
insert into image_generation_request (
    slack_event_id, model_vendor, job_id, token, prompt, seed, status, credits,
    queue_position, queue_length, created, updated
) values (
    $1::bigint, $2::text, $3::text, $4::text, $5::text, $6::bigint, $7::text, $8::numeric,
    $9::int, $10::int, now(), now()
)
returning id, created, updated;
`

const QSelectJob = `--sql 8398c507-51f6-4bf4-a7c4-f74bd520e733
select ` + jobColumns + `
from image_generation_request
where id = $1::bigint;
`

const QUpdateJobStatus = `--sql c3d499ee-7fa7-4764-bd08-c377ebbac3d8
update image_generation_request
set status = $2::text,
    credits = greatest(credits, $3::numeric),
    queue_position = $4::int,
    queue_length = $5::int,
    updated = now()
where id = $1::bigint
  and status not in ('complete', 'error');
`

const QSelectJobStatus = `--sql 3ee3475b-d1a8-4b6a-8768-5f6bd998f808
select status
from image_generation_request
where id = $1::bigint;
`
