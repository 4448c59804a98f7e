// Package export writes search results to CSV files.
//
// Exporter runs a named query through the search engine with paging
// disabled, renders the visible columns of the caller's settings and
// writes them to <query>-<uuid>.csv in the export directory. An optional
// Archiver (S3Archiver for S3 and MinIO) receives a copy under
// exports/<space>/<file>.
//
// Export files are temporary. Purge removes files older than a retention
// window; the adminkit-janitor binary runs it on a cron schedule.
package export
