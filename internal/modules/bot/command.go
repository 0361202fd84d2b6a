package bot

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"kmbp.app/ratingbot/internal/entity"
	"kmbp.app/ratingbot/pkg/apperror"
	pkgValidator "kmbp.app/ratingbot/pkg/validator"
)

type command struct {
	admin bool
	usage string
	run   func(ctx context.Context, req *request, args string) error
}

func (b *Bot) registerCommands() map[string]command {
	return map[string]command{
		"start":    {run: b.cmdStart},
		"cancel":   {run: b.cmdCancel},
		"mystatus": {run: b.cmdMyStatus},
		"help":     {run: b.cmdHelp},

		"add":      {admin: true, usage: "/add category | name | description", run: b.cmdAdd},
		"del":      {admin: true, usage: "/del name", run: b.cmdDel},
		"score":    {admin: true, usage: "/score name | ±N", run: b.cmdScore},
		"delrev":   {admin: true, usage: "/delrev review_id", run: b.cmdDelRev},
		"editdesc": {admin: true, usage: "/editdesc name | description", run: b.cmdEditDesc},
		"addphoto": {admin: true, usage: "/addphoto name", run: b.cmdAddPhoto},
		"stats":    {admin: true, usage: "/stats name", run: b.cmdStats},
		"list":     {admin: true, usage: "/list", run: b.cmdList},
		"ban":      {admin: true, usage: "/ban user_id [reason]", run: b.cmdBan},
		"unban":    {admin: true, usage: "/unban user_id", run: b.cmdUnban},
		"banlist":  {admin: true, usage: "/banlist", run: b.cmdBanList},
		"finduser": {admin: true, usage: "/finduser user_id | username", run: b.cmdFindUser},
	}
}

// parseCommand splits "/name[@bot] args". Commands addressed to another bot
// are not ours and come back with ok=false.
func parseCommand(text, botUsername string) (name, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	body := text[1:]
	head := body
	if i := strings.IndexFunc(body, unicode.IsSpace); i >= 0 {
		head, args = body[:i], strings.TrimSpace(body[i:])
	}

	name, mention, addressed := strings.Cut(head, "@")
	if addressed && botUsername != "" && !strings.EqualFold(mention, botUsername) {
		return "", "", false
	}
	if name == "" {
		return "", "", false
	}
	return strings.ToLower(name), args, true
}

// splitFields cuts pipe-delimited arguments into at most n trimmed fields.
// The last field keeps any further pipes.
func splitFields(args string, n int) []string {
	if strings.TrimSpace(args) == "" {
		return nil
	}
	fields := strings.SplitN(args, "|", n)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

// normalizeCategory accepts a category key or its button title.
func normalizeCategory(s string) string {
	s = strings.TrimSpace(s)
	if key, ok := entity.CategoryByTitle(s); ok {
		return key
	}
	return strings.ToLower(s)
}

func categoryKeys() string {
	keys := make([]string, 0, len(entity.Categories))
	for _, c := range entity.Categories {
		keys = append(keys, c.Key)
	}
	return strings.Join(keys, ", ")
}

type addArgs struct {
	Category    string `validate:"required,category" label:"Category"`
	Name        string `validate:"required,max=100" label:"Name"`
	Description string `validate:"max=2000" label:"Description"`
}

type nameArgs struct {
	Name string `validate:"required,max=100" label:"Project name"`
}

type scoreArgs struct {
	Name  string `validate:"required,max=100" label:"Project name"`
	Delta string `validate:"required,numeric" label:"Score change"`
}

type editDescArgs struct {
	Name        string `validate:"required,max=100" label:"Project name"`
	Description string `validate:"required,max=2000" label:"Description"`
}

type idArgs struct {
	ID string `validate:"required,numeric" label:"ID"`
}

type banArgs struct {
	UserID string `validate:"required,numeric" label:"User ID"`
	Reason string `validate:"max=500" label:"Reason"`
}

type queryArgs struct {
	Query string `validate:"required,max=64" label:"Query"`
}

func newCommandValidator() *validator.Validate {
	v := pkgValidator.New()
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return entity.IsValidCategory(fl.Field().String())
	})
	return v
}

func (b *Bot) check(args any) error {
	if err := b.validate.Struct(args); err != nil {
		return apperror.Invalid(pkgValidator.FormatValidationError(err))
	}
	return nil
}

func (b *Bot) usage(cmd string) error {
	return apperror.Invalid("Usage: " + b.commands[cmd].usage)
}

func parseWhole[T int | int64 | uint](s, label string) (T, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, apperror.Invalid(label + " must be a whole number")
	}
	return T(n), nil
}
