package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/nbenliogludev/go-web-agent/internal/browser"
	"github.com/nbenliogludev/go-web-agent/internal/steplog"
)

var bidParam = jsonschema.Definition{
	Type:        jsonschema.String,
	Description: "The bid (browser element ID) of the element, as shown in brackets in the page tree.",
}

var clickTool = Tool{
	Name:        "click",
	Description: "Click the element with the given bid.",
	Parameters: jsonschema.Definition{
		Type:       jsonschema.Object,
		Properties: map[string]jsonschema.Definition{"bid": bidParam},
		Required:   []string{"bid"},
	},
	Func: click,
}

var selectOptionTool = Tool{
	Name:        "select_option",
	Description: "Select one or more options of a <select> element by value or label.",
	Parameters: jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"bid": bidParam,
			"options": {
				Type:        jsonschema.Array,
				Description: "Option values or labels to select.",
				Items:       &jsonschema.Definition{Type: jsonschema.String},
			},
		},
		Required: []string{"bid", "options"},
	},
	Func: selectOption,
}

var uploadFileTool = Tool{
	Name:        "upload_file",
	Description: "Upload local files through the file input with the given bid.",
	Parameters: jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"bid": bidParam,
			"file_paths": {
				Type:        jsonschema.Array,
				Description: "Paths of the files to upload.",
				Items:       &jsonschema.Definition{Type: jsonschema.String},
			},
		},
		Required: []string{"bid", "file_paths"},
	},
	Func: uploadFile,
}

type clickArgs struct {
	Bid string `json:"bid"`
}

// describeTarget records what element bid refers to. An unknown bid is not
// fatal here; the page action reports it.
func describeTarget(ctx context.Context, page browser.Page, bid string, rec *steplog.Record) {
	rec.Bid = bid
	info, err := browser.LocateElement(ctx, page, bid)
	if err != nil || info.Empty() {
		return
	}
	rec.Metadata = map[string]any{"element": info}
}

func click(ctx context.Context, tc Context, args string, rec *steplog.Record) (string, error) {
	var in clickArgs
	if err := decodeArgs("click", args, &in); err != nil {
		return "", err
	}
	page, err := tc.page()
	if err != nil {
		return "", err
	}
	rec.Action = "click"
	describeTarget(ctx, page, in.Bid, rec)

	if err := browser.ClickBid(ctx, page, in.Bid); err != nil {
		return "", err
	}
	return fmt.Sprintf("Clicked element [%s]. Current URL: %s", in.Bid, page.URL()), nil
}

type selectArgs struct {
	Bid     string   `json:"bid"`
	Options []string `json:"options"`
}

func selectOption(ctx context.Context, tc Context, args string, rec *steplog.Record) (string, error) {
	var in selectArgs
	if err := decodeArgs("select_option", args, &in); err != nil {
		return "", err
	}
	page, err := tc.page()
	if err != nil {
		return "", err
	}
	rec.Action = "select"
	describeTarget(ctx, page, in.Bid, rec)

	picked, err := browser.SelectBid(ctx, page, in.Bid, in.Options)
	if err != nil {
		return "", err
	}
	if len(picked) == 0 {
		return fmt.Sprintf("No option matching %s on element [%s]", strings.Join(in.Options, ", "), in.Bid), nil
	}
	return fmt.Sprintf("Selected %s on element [%s]", strings.Join(picked, ", "), in.Bid), nil
}

type uploadArgs struct {
	Bid       string   `json:"bid"`
	FilePaths []string `json:"file_paths"`
}

func uploadFile(ctx context.Context, tc Context, args string, rec *steplog.Record) (string, error) {
	var in uploadArgs
	if err := decodeArgs("upload_file", args, &in); err != nil {
		return "", err
	}
	if len(in.FilePaths) == 0 {
		return "", fmt.Errorf("upload_file: no file paths given")
	}
	for _, p := range in.FilePaths {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("upload_file: %w", err)
		}
	}
	page, err := tc.page()
	if err != nil {
		return "", err
	}
	rec.Action = "upload"
	describeTarget(ctx, page, in.Bid, rec)

	if err := browser.UploadBid(ctx, page, in.Bid, in.FilePaths); err != nil {
		return "", err
	}
	return fmt.Sprintf("Uploaded %d file(s) to element [%s]", len(in.FilePaths), in.Bid), nil
}
