package sqlinline

const QUpsertGeneratedImage = `--sql a7cbaf8e-17d2-43fe-8e94-51dbc958d15a
insert into generated_image (
    image_generation_request_id, external_image_id, source_url, filename, width, height, seed, created
) values (
    $1::bigint, $2::text, $3::text, $4::text, $5::int, $6::int, $7::bigint, now()
)
on conflict (image_generation_request_id, external_image_id) do update set
    filename = coalesce(generated_image.filename, excluded.filename),
    seed = case when generated_image.seed = 0 then excluded.seed else generated_image.seed end
returning id, filename, seed, created;
`

const QListGeneratedImages = `--sql 09d370c3-1dce-409c-a228-814d28c577ba
select id, image_generation_request_id, external_image_id, source_url, filename, width, height, seed, created
from generated_image
where image_generation_request_id = $1::bigint
order by id asc;
`
