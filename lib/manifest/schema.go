package manifest

const Schema = `
create table if not exists archives (
    scenario      text not null primary key,
    file_name     text not null,
    md5_checksum  text not null,
    size_bytes    integer not null,
    downloaded_at integer not null,
    verified_at   integer not null
);
`
