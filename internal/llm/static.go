package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"
)

// StaticClient answers every task from built-in templates. Its output is
// shaped like a real model's answer (fenced code, JSON object) so that the
// stages exercise the same parsing paths.
type StaticClient struct{}

var (
	outlineLineRe  = regexp.MustCompile(`(?m)^\s*\d+\.\s*([^:]+):\s*(.*)$`)
	placeholderRe  = regexp.MustCompile(`placeholder_[a-z]+_\d+\.(?:png|jpg)`)
	defaultOutline = map[string]string{"Service name": "Our service", "Company": "Our company"}
)

func (StaticClient) Generate(ctx context.Context, p Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch p.Task {
	case TaskWireframe:
		return "```html\n" + staticMarkup(parseOutline(p.User)) + "\n```", nil
	case TaskStylesheet:
		return "```css\n" + staticStylesheet + "\n```", nil
	case TaskScript:
		return "```javascript\n" + staticScript + "\n```", nil
	case TaskImagePrompts:
		return staticImagePrompts(p.User)
	case TaskApplyImages:
		css := CodeBlocksByType(p.User)["css"]
		return "```css\n" + css + "\n\n" + staticHeroRule + "\n```", nil
	default:
		return "", fmt.Errorf("static provider: unknown task %q", p.Task)
	}
}

func parseOutline(text string) map[string]string {
	out := make(map[string]string, len(defaultOutline))
	for k, v := range defaultOutline {
		out[k] = v
	}
	for _, m := range outlineLineRe.FindAllStringSubmatch(text, -1) {
		if v := strings.TrimSpace(m[2]); v != "" {
			out[strings.TrimSpace(m[1])] = v
		}
	}
	return out
}

func staticMarkup(o map[string]string) string {
	esc := func(k string) string { return html.EscapeString(o[k]) }
	var features strings.Builder
	for i, f := range strings.Split(o["Features"], ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		fmt.Fprintf(&features, "        <div class=\"feature\">\n          <i data-lucide=\"check-circle\"></i>\n          <img src=\"placeholder_html_%d.png\" alt=\"%s\">\n          <h3>%s</h3>\n        </div>\n",
			i+1, html.EscapeString(f), html.EscapeString(f))
	}

	return `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>` + esc("Service name") + `</title>
  <link rel="stylesheet" href="style.css">
  <script src="https://unpkg.com/lucide@latest"></script>
</head>
<body>
  <header class="site-header">
    <div class="logo">` + esc("Service name") + `</div>
    <nav><a href="#features">Features</a><a href="#voices">Voices</a><a href="#contact">Contact</a></nav>
  </header>
  <main>
    <section class="hero">
      <h1>` + esc("Service name") + `</h1>
      <p>` + esc("Service category") + ` for ` + esc("Target audience") + `</p>
      <a class="cta" href="#contact">Get started</a>
    </section>
    <section id="features" class="features">
      <h2>Features</h2>
      <div class="feature-grid">
` + features.String() + `      </div>
    </section>
    <section id="voices" class="voices">
      <h2>What our customers say</h2>
      <blockquote>` + esc("Testimonials") + `</blockquote>
    </section>
    <section id="contact" class="contact">
      <h2>Contact</h2>
      <form><input type="email" placeholder="you@example.com"><button type="submit">Send</button></form>
    </section>
  </main>
  <footer class="site-footer">&copy; ` + esc("Company") + `</footer>
  <script>
    lucide.createIcons();
  </script>
  <script src="script.js"></script>
</body>
</html>`
}

const staticStylesheet = `* { box-sizing: border-box; margin: 0; padding: 0; }
body { font-family: "Helvetica Neue", Arial, sans-serif; color: #1f2933; line-height: 1.6; }
.site-header { display: flex; justify-content: space-between; align-items: center; padding: 1rem 2rem; }
.site-header nav a { margin-left: 1.5rem; color: inherit; text-decoration: none; }
.hero {
  min-height: 80vh;
  display: flex;
  flex-direction: column;
  justify-content: center;
  align-items: center;
  color: #fff;
  text-shadow: 0 2px 8px rgba(0, 0, 0, 0.6);
  background: linear-gradient(rgba(0, 0, 0, 0.45), rgba(0, 0, 0, 0.45)), url('placeholder_css_1.png') center / cover no-repeat;
}
.cta { margin-top: 1.5rem; padding: 0.75rem 2rem; border-radius: 999px; background: #f97316; color: #fff; text-decoration: none; }
.features, .voices, .contact { padding: 4rem 2rem; text-align: center; }
.feature-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(220px, 1fr)); gap: 2rem; margin-top: 2rem; }
.feature img { width: 100%; aspect-ratio: 16 / 9; object-fit: cover; border-radius: 8px; }
.site-footer { padding: 2rem; text-align: center; background: #111827; color: #9ca3af; }`

const staticScript = `document.addEventListener("DOMContentLoaded", function () {
  document.querySelectorAll('a[href^="#"]').forEach(function (link) {
    link.addEventListener("click", function (e) {
      var target = document.querySelector(link.getAttribute("href"));
      if (target) {
        e.preventDefault();
        target.scrollIntoView({ behavior: "smooth" });
      }
    });
  });
  var observer = new IntersectionObserver(function (entries) {
    entries.forEach(function (entry) {
      if (entry.isIntersecting) entry.target.classList.add("visible");
    });
  });
  document.querySelectorAll("section").forEach(function (s) { observer.observe(s); });
});`

const staticHeroRule = `.voices {
  background: linear-gradient(rgba(255, 255, 255, 0.85), rgba(255, 255, 255, 0.85)), url('placeholder_css_2.jpg') center / cover no-repeat;
}`

func staticImagePrompts(text string) (string, error) {
	seen := make(map[string]struct{})
	for _, name := range placeholderRe.FindAllString(text, -1) {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)

	prompts := make(map[string]string, len(names))
	for _, n := range names {
		prompts[n] = "A bright, modern photograph for a landing page section, soft natural light, no text"
	}
	payload, err := json.MarshalIndent(prompts, "", "  ")
	if err != nil {
		return "", err
	}
	return "```json\n" + string(payload) + "\n```", nil
}
