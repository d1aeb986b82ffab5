package resources

// FieldType selects the flag type of a Field
type FieldType int

const (
	String FieldType = iota
	Int
	Bool
	Strings
)

// Field is a kind specific create/update flag mapped to a payload key
type Field struct {
	Flag  string
	Short string
	Key   string
	Type  FieldType
	Usage string
	// Required fields must be set on create
	Required bool
}

var (
	nameColumns = []Column{
		{Header: "ID", Field: "id"},
		{Header: "NAME", Field: "name"},
		{Header: "DESCRIPTION", Field: "description"},
	}
)

// Kinds returns every REST kind the CLI exposes
func Kinds() []*Kind {
	return []*Kind{
		{
			Group:    "license",
			Name:     "server",
			Aliases:  []string{"servers"},
			Short:    "Manage license servers",
			Endpoint: "/lm/license_servers",
			Columns: []Column{
				{Header: "ID", Field: "id"},
				{Header: "NAME", Field: "name"},
				{Header: "HOST", Field: "host"},
				{Header: "PORT", Field: "port"},
				{Header: "DESCRIPTION", Field: "description"},
			},
			Fields: []Field{
				{Flag: "host", Key: "host", Usage: "Server hostname or IP address", Required: true},
				{Flag: "port", Key: "port", Type: Int, Usage: "Server port number"},
			},
		},
		{
			Group:    "license",
			Name:     "product",
			Aliases:  []string{"products"},
			Short:    "Manage license products",
			Endpoint: "/lm/products",
			Columns: []Column{
				{Header: "ID", Field: "id"},
				{Header: "NAME", Field: "name"},
				{Header: "VERSION", Field: "version"},
				{Header: "TYPE", Field: "license_type"},
				{Header: "DESCRIPTION", Field: "description"},
			},
			Fields: []Field{
				{Flag: "version", Key: "version", Usage: "Product version"},
				{Flag: "type", Short: "t", Key: "license_type", Usage: "Type of license (concurrent, node-locked)"},
			},
		},
		{
			Group:    "license",
			Name:     "configuration",
			Aliases:  []string{"configurations", "config"},
			Short:    "Manage license configurations",
			Endpoint: "/lm/configurations",
			Columns: []Column{
				{Header: "ID", Field: "id"},
				{Header: "NAME", Field: "name"},
				{Header: "TYPE", Field: "license_type"},
				{Header: "MAX-USERS", Field: "max_users"},
				{Header: "DESCRIPTION", Field: "description"},
			},
			Fields: []Field{
				{Flag: "type", Short: "t", Key: "license_type", Usage: "Type of license (concurrent, node-locked)"},
				{Flag: "max-users", Short: "m", Key: "max_users", Type: Int, Usage: "Maximum number of users"},
			},
		},
		{
			Group:    "license",
			Name:     "deployment",
			Aliases:  []string{"deployments"},
			Short:    "Manage license deployments",
			Endpoint: "/lm/deployments",
			Columns: []Column{
				{Header: "ID", Field: "id"},
				{Header: "NAME", Field: "name"},
				{Header: "PRODUCT", Field: "product_id"},
				{Header: "ENVIRONMENT", Field: "environment"},
				{Header: "NODES", Field: "nodes"},
			},
			Fields: []Field{
				{Flag: "product-id", Key: "product_id", Usage: "Product ID for the deployment"},
				{Flag: "environment", Short: "e", Key: "environment", Usage: "Deployment environment (dev, test, prod)"},
				{Flag: "nodes", Key: "nodes", Type: Int, Usage: "Number of nodes in the deployment"},
			},
		},
		{
			Group:    "license",
			Name:     "feature",
			Aliases:  []string{"features"},
			Short:    "Manage license features",
			Endpoint: "/lm/features",
			Columns: []Column{
				{Header: "ID", Field: "id"},
				{Header: "NAME", Field: "name"},
				{Header: "PRODUCT", Field: "product.name"},
				{Header: "TOTAL", Field: "inventory.total"},
				{Header: "USED", Field: "inventory.used"},
			},
		},
		{
			Group:    "license",
			Name:     "booking",
			Aliases:  []string{"bookings"},
			Short:    "Manage license bookings",
			Endpoint: "/lm/bookings",
			Unnamed:  true,
			Columns: []Column{
				{Header: "ID", Field: "id"},
				{Header: "JOB", Field: "job_id"},
				{Header: "FEATURE", Field: "feature_id"},
				{Header: "QUANTITY", Field: "quantity"},
				{Header: "CLUSTER", Field: "cluster_client_id"},
			},
			Fields: []Field{
				{Flag: "job-id", Key: "job_id", Usage: "Slurm job ID holding the booking"},
				{Flag: "feature-id", Key: "feature_id", Type: Int, Usage: "Feature being booked"},
				{Flag: "quantity", Key: "quantity", Type: Int, Usage: "Number of licenses booked"},
			},
		},
		{
			Group:    "job",
			Name:     "script",
			Aliases:  []string{"scripts"},
			Short:    "Manage job scripts",
			Endpoint: "/jobbergate/job-scripts",
			Columns: []Column{
				{Header: "ID", Field: "id"},
				{Header: "NAME", Field: "name"},
				{Header: "OWNER", Field: "owner_email"},
				{Header: "TEMPLATE", Field: "parent_template_id"},
				{Header: "DESCRIPTION", Field: "description"},
			},
			Fields: []Field{
				{Flag: "type", Short: "t", Key: "script_type", Usage: "Script type (bash, python, sbatch)"},
			},
		},
		{
			Group:    "job",
			Name:     "template",
			Aliases:  []string{"templates"},
			Short:    "Manage job script templates",
			Endpoint: "/jobbergate/job-script-templates",
			Columns: []Column{
				{Header: "ID", Field: "id"},
				{Header: "NAME", Field: "name"},
				{Header: "IDENTIFIER", Field: "identifier"},
				{Header: "OWNER", Field: "owner_email"},
				{Header: "DESCRIPTION", Field: "description"},
			},
			Fields: []Field{
				{Flag: "identifier", Short: "i", Key: "identifier", Usage: "Human-friendly identifier for the template"},
			},
		},
		{
			Group:    "job",
			Name:     "submission",
			Aliases:  []string{"submissions"},
			Short:    "Manage job submissions",
			Endpoint: "/jobbergate/job-submissions",
			Columns: []Column{
				{Header: "ID", Field: "id"},
				{Header: "NAME", Field: "name"},
				{Header: "STATUS", Field: "status"},
				{Header: "SLURM-JOB", Field: "slurm_job_id"},
				{Header: "CLUSTER", Field: "client_id"},
			},
			Fields: []Field{
				{Flag: "job-script-id", Key: "job_script_id", Type: Int, Usage: "ID of the job script to submit", Required: true},
				{Flag: "client-id", Key: "client_id", Usage: "Client ID of the cluster where the job runs"},
				{Flag: "execution-directory", Key: "execution_directory", Usage: "Directory on the cluster where the job runs"},
				{Flag: "slurm-job-id", Key: "slurm_job_id", Type: Int, Usage: "Slurm job ID, if already known"},
				{Flag: "sbatch-arg", Key: "sbatch_arguments", Type: Strings, Usage: "sbatch argument, repeatable"},
			},
		},
		{
			Name:       "storage",
			Short:      "Manage storage volumes",
			Endpoint:   "/cluster/storage",
			Attachable: true,
			Columns: []Column{
				{Header: "ID", Field: "id"},
				{Header: "NAME", Field: "name"},
				{Header: "SIZE-GB", Field: "size_gb"},
				{Header: "TYPE", Field: "storage_type"},
				{Header: "STATUS", Field: "status"},
			},
			Fields: []Field{
				{Flag: "size", Short: "s", Key: "size_gb", Type: Int, Usage: "Size of the volume in GB"},
				{Flag: "type", Short: "t", Key: "storage_type", Usage: "Storage type (ssd, hdd, nvme)"},
				{Flag: "zone", Short: "z", Key: "zone", Usage: "Availability zone"},
			},
		},
		{
			Name:       "network",
			Short:      "Manage networks",
			Endpoint:   "/cluster/networks",
			Attachable: true,
			Columns: []Column{
				{Header: "ID", Field: "id"},
				{Header: "NAME", Field: "name"},
				{Header: "CIDR", Field: "cidr"},
				{Header: "REGION", Field: "region"},
				{Header: "STATUS", Field: "status"},
			},
			Fields: []Field{
				{Flag: "cidr", Short: "c", Key: "cidr", Usage: "CIDR block of the network"},
				{Flag: "region", Short: "r", Key: "region", Usage: "Region of the network"},
				{Flag: "enable-dns", Key: "enable_dns", Type: Bool, Usage: "Enable DNS resolution"},
			},
		},
		{
			Name:     "team",
			Aliases:  []string{"teams"},
			Short:    "Manage teams",
			Endpoint: "/admin/management/teams",
			Columns:  nameColumns,
		},
	}
}

// DefaultRegistry registers every kind returned by Kinds
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	for _, kind := range Kinds() {
		if err := registry.Register(kind); err != nil {
			panic(err)
		}
	}
	return registry
}
