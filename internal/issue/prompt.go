package issue

// enrichExample is the worked example shown to the model before the real issue.
const enrichExample = `In Bootstrap 5.3 alpha 1 input-group component partialy react to inline data-bs-theme="dark" attribute
 ### Prerequisites

- [X] I have [searched](https://github.com/twbs/bootstrap/issues?utf8=%E2%9C%93&q=is%3Aissue) for duplicate or closed issues
- [X] I have [validated](https://html5.validator.nu/) any HTML to avoid common problems
- [X] I have read the [contributing guidelines](https://github.com/twbs/bootstrap/blob/main/.github/CONTRIBUTING.md)

### Describe the issue

So I set for html tag data-bs-theme="light" attribute and set data-bs-theme="dark" attribute inline for form-group component.

When I switch theme in html tag - color scheme of whole document are changing, but form-control background color also change from white to dark, is it must be fixed in dark color?. I repeat this bug at Bootstrap documentation page by inserting
form-group html code in some examples.

### Reduced test cases

` + "```" + `
<!DOCTYPE html>
<html lang="en" data-bs-theme="light">
<head>
</head>
<body>
    <div class="input-group input-group-lg" data-bs-theme="dark">
        <input type="text" class="form-control" placeholder="Email Address" aria-label="Email address" aria-describedby="button-join">
        <button class="btn btn-success bg-gradient" type="button" id="button-join">Join</button>
    </div>
</body>
</html>
` + "```" + `

### What operating system(s) are you seeing the problem on?

Windows

### What browser(s) are you seeing the problem on?

Chrome

### What version of Bootstrap are you using?

v5.3.0-alpha1`

const enrichExampleAnswer = `Key Focus: styling
Accepted File Extensions: [".css", ".scss", ".html", ".jsx", ".tsx"]
Core Concepts: styling, CSS, scss, readability, contrast
Code Examples: .bg-gradient, .data-bs-theme, light, dark, background-color: #ffffff`

const enrichTemplate = `We're trying to figure out the most relevant files to a Github issue in a codebase

Given the following queries, explain what is being looked for and include as many related keywords/synonyms as possible.

Issue:
"""
%s
"""
%s

Issue:
"""
%s
"""
Key Focus:
`
