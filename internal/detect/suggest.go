package detect

import (
	"fmt"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

var pythonEntryPoints = []string{"main.py", "app.py", "bot.py", "run.py"}

func suggestPython(d dir) []Suggestion {
	var out []Suggestion

	for _, venv := range []string{".venv", "venv"} {
		if !d.has(venv) {
			continue
		}
		activate := venv + "/bin/activate"
		if !d.has(activate) && d.has(venv+"/Scripts/activate") {
			activate = venv + "/Scripts/activate"
		}
		out = append(out, Suggestion{
			Command:     "source " + activate,
			Description: "Activate the virtual environment",
			Recommended: true,
		})
		break
	}

	if d.has("requirements.txt") {
		out = append(out, Suggestion{
			Command:     "pip install -r requirements.txt",
			Description: "Install dependencies",
		})
	}

	entry := pythonEntryPoints[0]
	for _, candidate := range pythonEntryPoints {
		if d.has(candidate) {
			entry = candidate
			break
		}
	}
	out = append(out, Suggestion{
		Command:     "python " + entry,
		Description: "Run " + entry,
		Recommended: true,
	})

	if data, ok := d.read("pyproject.toml"); ok {
		var pyproject struct {
			Project struct {
				Scripts map[string]string `toml:"scripts"`
			} `toml:"project"`
		}
		if err := toml.Unmarshal(data, &pyproject); err == nil {
			for _, name := range sortedKeys(pyproject.Project.Scripts) {
				out = append(out, Suggestion{
					Command:     name,
					Description: fmt.Sprintf("Console script (%s)", pyproject.Project.Scripts[name]),
				})
			}
		}
	}
	return out
}

// nodeRunScripts are tried in order; the first one present is recommended.
var nodeRunScripts = []struct {
	script  string
	command string
}{
	{"dev", "npm run dev"},
	{"start", "npm start"},
	{"serve", "npm run serve"},
}

func suggestNode(d dir) []Suggestion {
	out := []Suggestion{{
		Command:     "npm install",
		Description: "Install dependencies",
		Recommended: true,
	}}

	data, ok := d.read("package.json")
	if !ok || !gjson.ValidBytes(data) {
		return out
	}
	scripts := gjson.GetBytes(data, "scripts")

	chosen := ""
	for _, s := range nodeRunScripts {
		if scripts.Get(gjson.Escape(s.script)).Exists() {
			chosen = s.script
			out = append(out, Suggestion{
				Command:     s.command,
				Description: describeScript(scripts, s.script),
				Recommended: true,
			})
			break
		}
	}

	scripts.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if name == chosen {
			return true
		}
		out = append(out, Suggestion{
			Command:     "npm run " + name,
			Description: describeScript(scripts, name),
		})
		return true
	})
	return out
}

func describeScript(scripts gjson.Result, name string) string {
	body := scripts.Get(gjson.Escape(name)).String()
	if body == "" {
		return "Run the " + name + " script"
	}
	return fmt.Sprintf("Run the %s script (%s)", name, body)
}

func suggestRust(d dir) []Suggestion {
	out := []Suggestion{{
		Command:     "cargo run",
		Description: "Build and run the default binary",
		Recommended: true,
	}}

	data, ok := d.read("Cargo.toml")
	if !ok {
		return out
	}
	var manifest struct {
		Package struct {
			Name string `toml:"name"`
		} `toml:"package"`
		Bin []struct {
			Name string `toml:"name"`
		} `toml:"bin"`
	}
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return out
	}
	if manifest.Package.Name != "" {
		out[0].Description = fmt.Sprintf("Build and run %s", manifest.Package.Name)
	}
	for _, bin := range manifest.Bin {
		if bin.Name == "" {
			continue
		}
		out = append(out, Suggestion{
			Command:     "cargo run --bin " + bin.Name,
			Description: "Run the " + bin.Name + " binary",
		})
	}
	return out
}

func suggestGo(dir) []Suggestion {
	return []Suggestion{{
		Command:     "go run .",
		Description: "Build and run the main package",
		Recommended: true,
	}}
}

func suggestDocker(d dir) []Suggestion {
	out := []Suggestion{{
		Command:     "docker-compose up",
		Description: "Start all services",
		Recommended: true,
	}}

	for _, name := range []string{"docker-compose.yml", "docker-compose.yaml"} {
		data, ok := d.read(name)
		if !ok {
			continue
		}
		var compose struct {
			Services map[string]yaml.Node `yaml:"services"`
		}
		if err := yaml.Unmarshal(data, &compose); err != nil {
			break
		}
		for _, svc := range sortedKeys(compose.Services) {
			out = append(out, Suggestion{
				Command:     "docker-compose up " + svc,
				Description: "Start only " + svc,
			})
		}
		break
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
