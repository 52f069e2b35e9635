// Package workflow estimates properties by running external commands
// described in YAML workflow files.
//
// A workflow serves one calculation layer and a set of property types. It is
// a graph of protocols, each one a command, run in dependency order. The
// output protocol prints the estimate as JSON:
//
//	{"value": 0.997, "uncertainty": 0.002, "unit": "g/mL"}
//
// Command arguments are text/template strings expanded with the job, e.g.
// {{.Substance}}, {{.Temperature}}, {{.ParameterSet}}, {{.WorkDir}},
// {{index .Outputs "equilibrate"}} or {{index .Dirs "equilibrate"}}.
//
// A protocol marked merge runs once for every group of concurrent jobs that
// expand it to the same command. The parameter set path depends only on its
// content, and a merged protocol's {{.WorkDir}} is a directory shared by the
// merged jobs, so later protocols find its files through .Dirs.
package workflow
