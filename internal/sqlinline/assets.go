package sqlinline

const QUpsertAssetRecord = `--sql 6fe62992-02b6-41a4-8829-2b9f384182d0
insert into asset_records (id, canonical_url, original_url, degraded, created_at)
values ($1::text, $2::text, $3::text, $4::boolean, $5::timestamptz)
on conflict (id) do update set
  canonical_url = excluded.canonical_url,
  original_url = excluded.original_url,
  degraded = excluded.degraded,
  created_at = excluded.created_at;
`

const QSelectAssetRecordByID = `--sql 5e1a10af-829f-4e1d-9f62-9d725d543b48
select id, canonical_url, original_url, degraded, created_at
from asset_records
where id = $1::text
limit 1;
`
