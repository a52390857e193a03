package render

// pageTemplate is the full HTML5 document. The article headline is the sole
// h1; semantic landmarks carry the ToC, FAQ, PAA, and citations blocks, and
// one JSON-LD script describes the Article.
const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Headline}}</title>
<meta name="description" content="{{.MetaDescription}}">
<meta property="og:title" content="{{.Headline}}">
<meta property="og:description" content="{{.MetaDescription}}">
<meta property="article:published_time" content="{{.PublishedAt}}">
{{- if .SiteName}}
<meta property="og:site_name" content="{{.SiteName}}">
{{- end}}
{{- if .CanonicalURL}}
<link rel="canonical" href="{{.CanonicalURL}}">
{{- end}}
<script type="application/ld+json">{{.JSONLD}}</script>
</head>
<body>
<article>
<header>
<h1>{{.Headline}}</h1>
{{- if .Hero}}
<figure class="hero"><img src="{{.Hero.URL}}" alt="{{.Hero.Alt}}"></figure>
{{- end}}
<div class="lead">{{.Lead}}</div>
</header>
{{- if .TOC}}
<nav class="toc" aria-label="Table of contents">
<ol>
{{- range .TOC}}
<li><a href="#{{.Anchor}}">{{.Label}}</a></li>
{{- end}}
</ol>
</nav>
{{- end}}
{{- range $i, $s := .Sections}}
<section id="{{$s.Anchor}}">
<h2>{{$s.Heading}}</h2>
{{$s.Body}}
{{- range $s.Subsections}}
<section id="{{.Anchor}}">
<h3>{{.Heading}}</h3>
{{.Body}}
</section>
{{- end}}
{{- if and $.Mid (eq $i 0)}}
<figure class="mid"><img src="{{$.Mid.URL}}" alt="{{$.Mid.Alt}}"></figure>
{{- end}}
</section>
{{- end}}
{{- if .Comparison}}
<section class="comparison">
<table>
<thead><tr>{{range .Comparison.Headers}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{- range .Comparison.Rows}}
<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{- end}}
</tbody>
</table>
</section>
{{- end}}
{{- if .FAQ}}
<section class="faq">
<h2>Frequently asked questions</h2>
{{- range .FAQ}}
<details><summary>{{.Question}}</summary><div>{{.Answer}}</div></details>
{{- end}}
</section>
{{- end}}
{{- if .PAA}}
<section class="paa">
<h2>People also ask</h2>
{{- range .PAA}}
<details><summary>{{.Question}}</summary><div>{{.Answer}}</div></details>
{{- end}}
</section>
{{- end}}
{{- if .Bottom}}
<figure class="bottom"><img src="{{.Bottom.URL}}" alt="{{.Bottom.Alt}}"></figure>
{{- end}}
{{- if .Citations}}
<section class="citations">
<h2>Sources</h2>
<ol>
{{- range .Citations}}
<li id="source-{{.N}}"><a href="{{.URL}}" rel="nofollow noopener">{{.Title}}</a></li>
{{- end}}
</ol>
</section>
{{- end}}
<footer>
<time datetime="{{.PublishedAt}}">{{.PublishedAt}}</time>
</footer>
</article>
</body>
</html>
`
