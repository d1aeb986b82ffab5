/*
Package vantage provides the Vantage CLI for managing HPC clusters on the
Vantage platform and deploying Slurm and JupyterHub apps to local substrates.

Usage:

	vantage [command]

Available Commands:

	login       Log in with the OIDC device flow
	profile     Manage configuration profiles
	cloud       Manage deployment clouds
	cluster     Manage Vantage clusters
	app         Deploy apps to clusters
	notebook    Manage Jupyter notebook servers
	license     Manage license servers, products and bookings
	job         Manage Jobbergate scripts, templates and submissions
	storage     Manage storage volumes
	network     Manage networks
	team        Manage teams

Examples:

	# Deploy a single node Slurm cluster in Multipass without touching the API
	vantage app deploy slurm-multipass-localhost dev --dev-run

	# List license servers as JSON
	vantage license server list --json

Every command accepts --json, --verbose and --profile. Files live under
~/.vantage-cli unless VANTAGE_CLI_HOME is set.
*/
package vantage
