package sqlinline

const integrationColumns = `si.id, si.app_id, si.team_id, si.team_name, si.bot_user_id, si.access_token, sc.signing_secret`

const QSelectIntegration = `--sql 9447e99e-91cb-4951-a57e-66f46584deca
select ` + integrationColumns + `
from slack_integration si
join slack_client sc on sc.id = si.slack_client_id
where si.id = $1::bigint;
`

const QSelectIntegrationByAppID = `--sql 8e30177d-eb19-40af-b8fa-e3ac33e366a9
select ` + integrationColumns + `
from slack_integration si
join slack_client sc on sc.id = si.slack_client_id
where si.app_id = $1::text
order by si.created desc
limit 1;
`
