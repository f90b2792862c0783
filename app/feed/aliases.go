package feed

// Alias precedence lists mapping the many upstream spellings of a field to
// its canonical name. Order matters: the first present, non-empty field wins.
var (
	titleAliases    = []string{"title", "jobtitle", "position", "job_title", "positiontitle"}
	companyAliases  = []string{"company", "employer", "company_name", "advertiser", "organization", "client", "azienda"}
	locationAliases = []string{"location", "city", "town", "place", "municipality", "worklocation", "worktown", "sede"}
	regionAliases   = []string{"region", "state", "province"}
	categoryAliases = []string{"category", "jobcategory", "sector", "function", "discipline", "area"}

	descriptionAliases  = []string{"description", "job_description", "jobdescription", "summary"}
	requirementsAliases = []string{"requirements", "qualifications", "skills"}

	applyURLAliases = []string{"apply_url", "applicationurl", "applyurl", "apply_link", "joburl", "url", "link"}

	contractAliases = []string{"contract_type", "type", "jobtype", "job_type", "contracttype", "employment_type", "worktype"}
	scheduleAliases = []string{"work_schedule", "hours", "workschedule", "schedule", "workhours"}

	salaryMinAliases = []string{"salary_min", "salary", "salary_from", "minsalary"}
	salaryMaxAliases = []string{"salary_max", "salary_to", "maxsalary"}

	expiryAliases = []string{"expiry_date", "expirationdate", "expires", "valid_until"}

	idAliases = []string{"id", "referencenumber", "reference_number", "jobid", "job_id", "vacancyid", "vacancy_id", "reference", "reqid", "req_id", "requisitionid"}
)

// firstAlias resolves a canonical field through its alias precedence list.
func firstAlias(r RawRecord, aliases []string) string {
	for _, a := range aliases {
		if v, ok := r[a]; ok && v != "" {
			return v
		}
	}
	return ""
}
