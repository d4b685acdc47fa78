package portal

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/me/tutordesk/pkg/model"
)

// Template functions available in all templates.
var templateFuncs = template.FuncMap{
	"money": func(a model.Amount) string {
		return humanize.Comma(int64(a)) + " so'm"
	},
	"attendanceLabel": func(status string) string {
		switch status {
		case model.AttendancePresent:
			return "Present"
		case model.AttendanceAbsent:
			return "Absent"
		default:
			return status
		}
	},
	"attendanceColor": func(status string) string {
		if status == model.AttendancePresent {
			return "text-green-700"
		}
		return "text-red-700"
	},
	"presentCount": func(entries []model.AttendanceEntry) int {
		n := 0
		for _, e := range entries {
			if e.Present() {
				n++
			}
		}
		return n
	},
	"today": func() string {
		return time.Now().Format(time.DateOnly)
	},
}

var (
	parseOnce sync.Once
	parsed    map[string]*template.Template
	parseErr  error
)

// renderTemplate renders page name inside the layout.
func renderTemplate(w io.Writer, name string, data map[string]any) error {
	parseOnce.Do(func() { parsed, parseErr = parseTemplates() })
	if parseErr != nil {
		return parseErr
	}
	tmpl, ok := parsed[name]
	if !ok {
		return fmt.Errorf("template not found: %s", name)
	}
	return tmpl.Execute(w, data)
}

func parseTemplates() (map[string]*template.Template, error) {
	out := make(map[string]*template.Template)
	for name, content := range templates {
		if name == "layout" || strings.HasPrefix(name, "components/") {
			continue
		}
		tmpl, err := template.New("layout").Funcs(templateFuncs).Parse(templates["layout"])
		if err != nil {
			return nil, fmt.Errorf("parse layout: %w", err)
		}
		if _, err := tmpl.New("content").Parse(content); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		for compName, compContent := range templates {
			if !strings.HasPrefix(compName, "components/") {
				continue
			}
			if _, err := tmpl.New(compName).Parse(compContent); err != nil {
				return nil, fmt.Errorf("parse component %s: %w", compName, err)
			}
		}
		out[name] = tmpl
	}
	return out, nil
}

// templates holds all template content.
var templates = map[string]string{
	"layout": `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <script src="https://cdn.tailwindcss.com"></script>
</head>
<body class="bg-gray-50 min-h-screen">
    {{with .User}}{{if .IsAuthenticated}}
    <nav class="bg-white shadow-sm border-b">
        <div class="max-w-5xl mx-auto px-4 flex justify-between h-14 items-center">
            <a href="/" class="text-xl font-bold text-indigo-600">tutordesk</a>
            <div class="flex items-center gap-4 text-sm text-gray-500">
                <span>{{.DisplayName}} ({{.Role}})</span>
                <form action="/logout" method="POST"><button type="submit" class="hover:text-gray-700">Sign out</button></form>
            </div>
        </div>
    </nav>
    {{end}}{{end}}
    <main class="max-w-5xl mx-auto py-6 px-4">
        {{template "flash" .}}
        {{template "content" .}}
    </main>
</body>
</html>`,

	"components/flash": `{{define "flash"}}
{{if .Error}}<div id="error" class="rounded-md bg-red-50 p-4 mb-4 text-sm text-red-700">{{.Error}}</div>{{end}}
{{if .Notice}}<div id="notice" class="rounded-md bg-blue-50 p-4 mb-4 text-sm text-blue-700">{{.Notice}}</div>{{end}}
{{end}}`,

	"components/attendance": `{{define "attendance"}}
{{if .}}
<table class="min-w-full text-sm">
    <thead><tr><th class="text-left">Date</th><th class="text-left">Lesson</th><th class="text-left">Status</th></tr></thead>
    <tbody>
    {{range .}}
    <tr><td>{{.Date}}</td><td>{{if .Lesson}}{{.Lesson}}{{else}}-{{end}}</td><td class="{{attendanceColor .Status}}">{{attendanceLabel .Status}}</td></tr>
    {{end}}
    </tbody>
</table>
<p class="mt-2 text-sm text-gray-500">{{presentCount .}} of {{len .}} lessons attended</p>
{{else}}
<p class="text-sm text-gray-500">No attendance recorded.</p>
{{end}}
{{end}}`,

	"login": `{{define "content"}}
<div class="max-w-md mx-auto mt-12">
    <h2 class="text-center text-3xl font-extrabold text-gray-900">Sign in</h2>
    <form class="mt-8 space-y-4" action="/login" method="POST">
        <input name="email" type="email" required placeholder="Email" class="block w-full px-3 py-2 border rounded-md">
        <input name="password" type="password" required placeholder="Password" class="block w-full px-3 py-2 border rounded-md">
        <button type="submit" class="w-full py-2 rounded-md text-white bg-indigo-600 hover:bg-indigo-700">Sign in</button>
    </form>
    <p class="mt-4 text-center text-sm"><a href="/register" class="text-indigo-600">Create an account</a></p>
</div>
{{end}}`,

	"register": `{{define "content"}}
<div class="max-w-md mx-auto mt-12">
    <h2 class="text-center text-3xl font-extrabold text-gray-900">Create an account</h2>
    <form class="mt-8 space-y-4" action="/register" method="POST">
        <input name="fullname" type="text" required placeholder="Full name" class="block w-full px-3 py-2 border rounded-md">
        <input name="email" type="email" required placeholder="Email" class="block w-full px-3 py-2 border rounded-md">
        <input name="password" type="password" required placeholder="Password" class="block w-full px-3 py-2 border rounded-md">
        <input name="course" type="text" placeholder="Course (optional)" class="block w-full px-3 py-2 border rounded-md">
        <button type="submit" class="w-full py-2 rounded-md text-white bg-indigo-600 hover:bg-indigo-700">Register</button>
    </form>
    <p class="mt-4 text-center text-sm"><a href="/login" class="text-indigo-600">Already registered? Sign in</a></p>
</div>
{{end}}`,

	"student": `{{define "content"}}
{{with .Stats}}
<h1 class="text-2xl font-semibold text-gray-900">{{.Fullname}}</h1>
<p class="text-sm text-gray-500">{{.Email}}</p>
<div class="grid grid-cols-2 gap-4 my-6">
    <div class="bg-white shadow rounded-lg p-4"><div class="text-sm text-gray-500">Paid</div><div id="paid" class="text-xl">{{money .TotalPaid}}</div></div>
    <div class="bg-white shadow rounded-lg p-4"><div class="text-sm text-gray-500">Remaining</div><div id="debt" class="text-xl">{{if .HasDebt}}{{money .RemainingDebt}}{{else}}Fully paid{{end}}</div></div>
</div>

<section class="bg-white shadow rounded-lg p-4 mb-6">
    <h2 class="font-semibold mb-2">Attendance</h2>
    {{template "attendance" .Attendance}}
    <form action="/student/attendance" method="POST" class="mt-2"><button type="submit" class="px-3 py-1 rounded bg-indigo-600 text-white">I'm here today</button></form>
</section>

<section class="bg-white shadow rounded-lg p-4 mb-6">
    <h2 class="font-semibold mb-2">Grades</h2>
    {{range .Grades}}<p>{{.Grade}}{{if .Date}} <span class="text-gray-500">{{.Date}}</span>{{end}}{{if .Comment}} {{.Comment}}{{end}}</p>{{else}}<p class="text-sm text-gray-500">No grades yet.</p>{{end}}
</section>

<section class="bg-white shadow rounded-lg p-4 mb-6">
    <h2 class="font-semibold mb-2">Profile</h2>
    <form action="/student/profile" method="POST" class="space-y-2">
        <input name="fullname" value="{{.Fullname}}" class="block w-full px-3 py-2 border rounded-md">
        <input name="email" type="email" value="{{.Email}}" class="block w-full px-3 py-2 border rounded-md">
        <input name="password" type="password" placeholder="New password (optional)" class="block w-full px-3 py-2 border rounded-md">
        <input name="photo" value="{{.Photo}}" placeholder="Photo URL" class="block w-full px-3 py-2 border rounded-md">
        <button type="submit" class="px-3 py-1 rounded bg-indigo-600 text-white">Save</button>
    </form>
</section>
{{end}}

<section class="bg-white shadow rounded-lg p-4">
    <h2 class="font-semibold mb-2">Make a payment</h2>
    <form action="/student/pay" method="POST" class="flex gap-2">
        <input name="amount" type="number" min="{{.MinPayment}}" step="1" required placeholder="Amount" class="px-3 py-2 border rounded-md">
        <button type="submit" class="px-3 py-1 rounded bg-indigo-600 text-white">Pay</button>
    </form>
    <p class="mt-1 text-xs text-gray-500">Minimum {{money .MinPayment}}. An administrator confirms each payment.</p>
</section>
{{end}}`,

	"admin": `{{define "content"}}
<h1 class="text-2xl font-semibold text-gray-900 mb-4">Back office</h1>

<form method="GET" action="/admin/dashboard" class="mb-4">
    <input name="search" value="{{.Search}}" placeholder="Search by name" class="px-3 py-2 border rounded-md">
    <button type="submit" class="px-3 py-1 rounded bg-gray-200">Search</button>
</form>

<section class="bg-white shadow rounded-lg p-4 mb-6">
    <h2 class="font-semibold mb-2">Users</h2>
    <table id="users" class="min-w-full text-sm">
        <thead><tr><th class="text-left">ID</th><th class="text-left">Name</th><th class="text-left">Email</th><th class="text-right">Paid</th><th class="text-right">Debt</th><th></th></tr></thead>
        <tbody>
        {{range .Users}}
        <tr>
            <td>{{.ID}}</td>
            <td><a href="/admin/students/{{.ID}}" class="text-indigo-600">{{.Fullname}}</a>{{if not .IsActive}} <span class="text-gray-400">(inactive)</span>{{end}}</td>
            <td>{{.Email}}</td>
            <td class="text-right">{{money .TotalPaid}}</td>
            <td class="text-right">{{money .TotalDebt}}</td>
            <td><form action="/admin/users/{{.ID}}/delete" method="POST" onsubmit="return confirm('Delete {{.Fullname}}?')"><button type="submit" class="text-red-600">Delete</button></form></td>
        </tr>
        {{else}}
        <tr><td colspan="6" class="text-gray-500">No users found.</td></tr>
        {{end}}
        </tbody>
    </table>
</section>

<section class="bg-white shadow rounded-lg p-4 mb-6">
    <h2 class="font-semibold mb-2">Pending payments</h2>
    {{range .Pending}}
    <form action="/admin/payments/{{.ID}}/confirm" method="POST" class="flex gap-4 items-center">
        <span>#{{.ID}}</span><span>{{.Fullname}}</span><span>{{money .Amount}}</span>
        <button type="submit" class="px-3 py-1 rounded bg-green-600 text-white">Confirm</button>
    </form>
    {{else}}
    <p class="text-sm text-gray-500">No pending payments.</p>
    {{end}}
</section>

<div class="grid grid-cols-2 gap-4">
    <form action="/admin/attendance" method="POST" class="bg-white shadow rounded-lg p-4 space-y-2">
        <h2 class="font-semibold">Attendance</h2>
        <input name="user_id" type="number" required placeholder="User ID" class="block w-full px-3 py-2 border rounded-md">
        <input name="date" type="date" value="{{today}}" required class="block w-full px-3 py-2 border rounded-md">
        <input name="lesson" type="number" min="1" placeholder="Lesson (default 1)" class="block w-full px-3 py-2 border rounded-md">
        <select name="status" class="block w-full px-3 py-2 border rounded-md"><option value="present">Present</option><option value="absent">Absent</option></select>
        <button type="submit" class="px-3 py-1 rounded bg-indigo-600 text-white">Save</button>
    </form>
    <form action="/admin/grade" method="POST" class="bg-white shadow rounded-lg p-4 space-y-2">
        <h2 class="font-semibold">Grade</h2>
        <input name="user_id" type="number" required placeholder="User ID" class="block w-full px-3 py-2 border rounded-md">
        <input name="grade" required placeholder="Grade" class="block w-full px-3 py-2 border rounded-md">
        <input name="comment" placeholder="Comment" class="block w-full px-3 py-2 border rounded-md">
        <button type="submit" class="px-3 py-1 rounded bg-indigo-600 text-white">Save</button>
    </form>
    <form action="/admin/payments/add" method="POST" class="bg-white shadow rounded-lg p-4 space-y-2">
        <h2 class="font-semibold">Add payment</h2>
        <input name="user_id" type="number" required placeholder="User ID" class="block w-full px-3 py-2 border rounded-md">
        <input name="amount" type="number" min="1" required placeholder="Amount" class="block w-full px-3 py-2 border rounded-md">
        <button type="submit" class="px-3 py-1 rounded bg-indigo-600 text-white">Add</button>
    </form>
</div>
{{end}}`,

	"history": `{{define "content"}}
{{with .Student}}
<p class="mb-2"><a href="/admin/dashboard" class="text-indigo-600">&larr; Back office</a></p>
<h1 class="text-2xl font-semibold text-gray-900">{{.Fullname}}</h1>
<p class="text-sm text-gray-500 mb-4">{{.Email}}</p>

<section class="bg-white shadow rounded-lg p-4 mb-6">
    <h2 class="font-semibold mb-2">Payments</h2>
    {{range .Payments}}
    <form action="/admin/payments/{{.ID}}" method="POST" class="flex gap-4 items-center">
        <span>#{{.ID}}</span><span>{{money .Amount}}</span><span class="text-gray-500">{{.Status}} {{.CreatedAt}}</span>
        <input name="amount" type="number" min="1" value="{{.Amount}}" class="px-2 py-1 border rounded-md">
        <button type="submit" class="px-3 py-1 rounded bg-gray-200">Update</button>
    </form>
    {{else}}
    <p class="text-sm text-gray-500">No payments.</p>
    {{end}}
</section>

<section class="bg-white shadow rounded-lg p-4">
    <h2 class="font-semibold mb-2">Attendance</h2>
    {{template "attendance" .Attendance}}
</section>
{{end}}
{{end}}`,

	"error": `{{define "content"}}
<div class="text-center mt-12">
    <h1 class="text-2xl font-semibold text-gray-900">{{.Message}}</h1>
    <p class="mt-4"><a href="/" class="text-indigo-600">Go home</a></p>
</div>
{{end}}`,
}
