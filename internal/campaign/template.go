package campaign

import (
	"fmt"
	"os"
	"time"

	"github.com/osteele/liquid"
)

// defaultEmailTemplate is the stock campaign creative. A hidden tracking
// pixel sits after the body; the call-to-action button carries the
// tracked click URL.
const defaultEmailTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Your Exclusive Content</title>
  <style>
    body {
      font-family: 'Helvetica Neue', Arial, sans-serif;
      background: #f5f6f8;
      margin: 0;
      padding: 0;
    }
    .container {
      max-width: 650px;
      margin: 40px auto;
      background: #ffffff;
      border-radius: 10px;
      overflow: hidden;
      box-shadow: 0 4px 20px rgba(0,0,0,0.1);
    }
    .header {
      background: #000000;
      color: #ffffff;
      padding: 30px;
      text-align: center;
    }
    .header h1 {
      margin: 0;
      font-weight: 600;
      font-size: 24px;
    }
    .content {
      padding: 30px;
      color: #333333;
      line-height: 1.6;
    }
    .highlight {
      background: #f0f4ff;
      padding: 20px;
      border-left: 4px solid #4b6cb7;
      border-radius: 5px;
      margin: 20px 0;
    }
    a.link {
      display: inline-block;
      margin-top: 15px;
      padding: 12px 25px;
      background: #4b6cb7;
      color: #fff !important;
      text-decoration: none;
      border-radius: 5px;
      font-weight: 500;
    }
    .footer {
      font-size: 12px;
      color: #999999;
      padding: 25px;
      text-align: center;
    }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>Hello {{ name | default: "Friend" }}</h1>
    </div>
    <div class="content">
      <p>We thought you might enjoy this curated content:</p>

      <div class="highlight">
        <p><strong>Exclusive Feature:</strong> Watch an inspiring video we hand-picked just for you.</p>
        <a href="{{ tracked_url }}" class="link">Watch Now</a>
      </div>

      <p>We hope this brings you some value and inspiration!</p>
    </div>
    <div class="footer">
      &copy; {{ year }} Your Company. All rights reserved.
    </div>
  </div>

  <img src="{{ pixel_url }}" style="display:none;" />
</body>
</html>
`

// Renderer renders the campaign creative with per-recipient tracking
// URLs injected. The template is parsed once at construction.
type Renderer struct {
	tpl *liquid.Template
}

// NewRenderer creates a renderer for the default creative, or for the
// template file at path when one is configured.
func NewRenderer(path string) (*Renderer, error) {
	src := defaultEmailTemplate
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", path, err)
		}
		src = string(data)
	}

	engine := liquid.NewEngine()
	engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	tpl, err := engine.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return &Renderer{tpl: tpl}, nil
}

// RenderEmail produces the HTML body for one recipient.
func (r *Renderer) RenderEmail(name, trackedURL, pixelURL string) (string, error) {
	out, err := r.tpl.RenderString(map[string]interface{}{
		"name":        name,
		"tracked_url": trackedURL,
		"pixel_url":   pixelURL,
		"year":        time.Now().Year(),
	})
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}
