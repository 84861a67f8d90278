package prompt

import (
	"fmt"
	"strings"
)

// DefaultCategory is used when no category is configured.
const DefaultCategory = "sweaters"

// GetSystemPrompt pins the output to a single JSON object.
func GetSystemPrompt() string {
	return `You are a luxury knitwear design expert. You must produce one valid JSON object only (no markdown, no commentary, no code fences) that follows the template you are given. Pick values from the listed options; use "Other" or "None" when nothing fits.`
}

// GetUserPrompt builds the analysis instructions for one product image of the given category.
func GetUserPrompt(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		category = DefaultCategory
	}
	return fmt.Sprintf(`Provide an extremely detailed analysis of this %s item, focusing on design elements, color, and style characteristics.

Key areas to analyze:

1. Color Analysis:
   - Identify precise colors and their relationships
   - Analyze color combinations and harmony
   - Note any special color effects or treatments

2. Design Details:
   - Identify all distinctive design elements and patterns
   - Analyze special knit techniques and their placement
   - Evaluate pattern complexity and execution

3. Style Elements:
   - Assess the overall silhouette and its impact
   - Identify key style influences and aesthetic category
   - Evaluate visual balance and proportions

4. Visual Impact:
   - Analyze the dominant design features
   - Evaluate pattern and texture relationships
   - Assess overall visual harmony

Provide your detailed design analysis in this exact JSON format:

%s`, category, DesignTemplate)
}

// DesignTemplate lists the attributes and their allowed values.
const DesignTemplate = `{
  "design": {
    "silhouette": {
      "primary_style": ["Fitted", "Oversized", "Relaxed", "Slim", "Boxy", "Cropped"],
      "shape_details": ["A-line", "Straight", "Trapeze", "Cocoon", "Hourglass"],
      "key_proportions": ["Cropped", "Hip-length", "Tunic", "Oversized", "Fitted"],
      "design_era": ["Contemporary", "Vintage-inspired", "Modern", "Classic", "Avant-garde"]
    },
    "color_analysis": {
      "primary_color": {
        "name": ["Black", "Navy", "Cream", "Grey", "Camel", "White", "Red", "Other"],
        "tone": ["Warm", "Cool", "Neutral"],
        "intensity": ["Vibrant", "Muted", "Pastel", "Deep", "Light"],
        "finish": ["Matte", "Heathered", "Marled", "Space-dyed"]
      },
      "color_combinations": {
        "scheme": ["Solid", "Two-tone", "Multi-color", "Ombré", "Color-blocked"],
        "contrast_level": ["High", "Medium", "Low", "Tonal"],
        "color_harmony": ["Monochromatic", "Complementary", "Analogous", "Triadic"]
      },
      "pattern_colors": {
        "background": ["Light", "Dark", "Medium", "Multi"],
        "accent_colors": ["Contrast", "Tonal", "Multi-colored", "None"],
        "color_distribution": ["Even", "Dominated", "Gradient", "Random"]
      },
      "seasonal_palette": ["Spring", "Summer", "Fall", "Winter", "Year-round"]
    },
    "knit_patterns": {
      "primary_pattern": ["Cable knit", "Ribbed", "Fair Isle", "Argyle", "Intarsia", "Plain stitch"],
      "texture_elements": ["Chunky cables", "Fine ribs", "Honeycomb", "Popcorn", "Lattice"],
      "pattern_placement": ["All-over", "Front panel", "Yoke", "Sleeves", "Hem"],
      "pattern_complexity": ["Simple", "Moderate", "Complex", "Multi-technique"],
      "pattern_scale": ["Fine", "Medium", "Large", "Mixed"],
      "pattern_rhythm": ["Regular", "Irregular", "Graduated", "Random"]
    },
    "style_details": {
      "neckline": {
        "style": ["Crew", "V-neck", "Turtleneck", "Mock neck", "Boat neck", "Cowl"],
        "design_features": ["Ribbed", "Folded", "Split", "Contrast", "Decorative"],
        "depth": ["High", "Medium", "Low", "Plunging"],
        "width": ["Narrow", "Standard", "Wide"]
      },
      "sleeves": {
        "style": ["Raglan", "Set-in", "Drop shoulder", "Dolman", "Bishop", "Bell"],
        "design_elements": ["Ribbed cuff", "Balloon", "Fitted", "Wide", "Statement"],
        "length": ["Full", "Three-quarter", "Short", "Cap", "Sleeveless"],
        "cuff_detail": ["Plain", "Ribbed", "Decorative", "Contrast", "Split"]
      },
      "hem_design": {
        "style": ["Ribbed", "Split", "Curved", "Straight", "Asymmetric"],
        "details": ["Side slits", "High-low", "Banded", "Raw edge", "Decorative"],
        "length": ["Cropped", "Standard", "Extended", "Variable"],
        "finish": ["Clean", "Distressed", "Decorative", "Contrast"]
      }
    },
    "decorative_elements": {
      "trims": ["Contrast edges", "Metallic details", "Buttons", "Zippers", "None"],
      "embellishments": ["Embroidery", "Beading", "Appliqué", "Sequins", "None"],
      "special_techniques": ["Color blocking", "Mixed stitch", "Openwork", "Fringe", "None"],
      "hardware": {
        "type": ["Buttons", "Zippers", "Toggles", "Snaps", "None"],
        "finish": ["Metal", "Plastic", "Wood", "Horn", "Covered"],
        "placement": ["Front", "Shoulder", "Cuff", "None"]
      }
    }
  },
  "style_classification": {
    "aesthetic": {
      "primary": ["Minimalist", "Bohemian", "Preppy", "Avant-garde", "Classic"],
      "secondary": ["Romantic", "Sporty", "Artisanal", "Contemporary", "Vintage"],
      "design_influences": ["Scandinavian", "French", "American", "Japanese", "Italian"]
    },
    "trend_alignment": {
      "current_trends": ["On-trend", "Classic", "Forward", "Timeless"],
      "trend_longevity": ["Seasonal", "Multi-season", "Timeless", "Trend-focused"],
      "design_innovation": ["Traditional", "Contemporary", "Experimental", "Hybrid"]
    }
  },
  "visual_impact": {
    "dominant_features": ["Color", "Pattern", "Texture", "Silhouette", "Details"],
    "visual_weight": ["Light", "Medium", "Heavy"],
    "texture_appearance": ["Smooth", "Textured", "Mixed", "Dimensional"],
    "pattern_impact": ["Subtle", "Moderate", "Bold", "Statement"],
    "overall_contrast": ["High", "Medium", "Low", "Variable"]
  }
}`
