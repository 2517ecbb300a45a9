package requests

// SyncAssessmentsRequest selects which assessment run a trigger request
// starts. Category empty means both categories; Mode is "backfill" or
// "update" (default); StartYear overrides the configured backfill start.
type SyncAssessmentsRequest struct {
	Category  string `query:"category"`
	Mode      string `query:"mode"`
	StartYear int    `query:"start_year"`
}
